package tryon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"go.uber.org/zap"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Poller is the base poll configuration. A request's own Timeout
	// overrides Poller.Timeout.
	Poller PollerConfig

	// Recorder, if set, receives submissions and status updates.
	Recorder Recorder
}

// Client orchestrates submit, wait and extract for try-on jobs.
//
// This organism composes:
//   - Transport (package runpod) for the HTTP calls
//   - Poller for the wait loop
//   - Extractor for result decoding
//   - Recorder (optional) for job history
//
// Thread Safety: Client is safe for concurrent use; each call carries its own
// handle, deadline and correlation id.
type Client struct {
	transport Transport
	extractor *Extractor
	cfg       ClientConfig
	logger    *logging.Logger
}

// NewClient creates a Client.
func NewClient(transport Transport, extractor *Extractor, cfg ClientConfig, logger *logging.Logger) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("tryon: transport cannot be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("tryon: extractor cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	// Validate the poll configuration once up front.
	if _, err := NewPoller(transport, cfg.Poller, logger); err != nil {
		return nil, err
	}
	return &Client{transport: transport, extractor: extractor, cfg: cfg, logger: logger.Named("tryon")}, nil
}

// Run submits req asynchronously, waits for a terminal status and extracts the image.
func (c *Client) Run(ctx context.Context, req *JobRequest) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("tryon: request cannot be nil")
	}
	cid, log := c.invocationLogger()
	start := time.Now()

	handle, err := c.transport.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if handle.SubmittedAt.IsZero() {
		handle.SubmittedAt = start
	}
	log.Info("job submitted",
		zap.String(logging.KeyJobID, handle.ID),
		zap.String("mode", string(req.Mode())),
		zap.String("category", string(req.Category())))
	c.recordSubmitted(ctx, log, Submission{Handle: handle, CorrelationID: cid, Request: req})

	poller, err := c.poller(req.Timeout(), log)
	if err != nil {
		return nil, err
	}
	status, polls, err := poller.wait(ctx, handle, false, log)
	return c.finish(ctx, log, handle, status, polls, err)
}

// RunSync submits req through the synchronous endpoint. When the server's
// wait elapses before the job finishes, polling continues with the returned
// job id under the same overall deadline.
func (c *Client) RunSync(ctx context.Context, req *JobRequest) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("tryon: request cannot be nil")
	}
	cid, log := c.invocationLogger()
	start := time.Now()

	poller, err := c.poller(req.Timeout(), log)
	if err != nil {
		return nil, err
	}
	budget := poller.Config().Timeout

	// The server-side wait shares the job deadline with any polling after it.
	syncCtx, cancel := context.WithDeadline(ctx, start.Add(budget))
	status, err := c.transport.RunSync(syncCtx, req)
	hitDeadline := errors.Is(syncCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if ctx.Err() == nil && hitDeadline {
			err = &core.TimeoutError{Elapsed: time.Since(start), Deadline: budget, LastState: "SUBMITTED"}
			log.Warn("runsync exceeded the job deadline", zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("runsync: %w", err)
	}
	handle := JobHandle{ID: status.JobID, SubmittedAt: start}
	if handle.ID != "" {
		c.recordSubmitted(ctx, log, Submission{Handle: handle, CorrelationID: cid, Request: req, Sync: true})
	}

	if status.State.Terminal() {
		log.Info("runsync finished", zap.String(logging.KeyJobID, handle.ID), zap.String(logging.KeyState, status.Label()))
		return c.finish(ctx, log, handle, status, 0, nil)
	}
	if handle.ID == "" {
		return nil, &core.TransportError{Op: "runsync", Err: errors.New("non-terminal response without a job id")}
	}

	log.Info("runsync returned before completion, polling",
		zap.String(logging.KeyJobID, handle.ID),
		zap.String(logging.KeyState, status.Label()))

	status, polls, err := poller.wait(ctx, handle, false, log)
	return c.finish(ctx, log, handle, status, polls, err)
}

// Resume waits on an existing job, e.g. after a client-side *core.TimeoutError,
// and extracts its result. The first poll happens immediately. timeout of zero
// uses the configured poll timeout, measured from now.
func (c *Client) Resume(ctx context.Context, jobID string, timeout time.Duration) (*Result, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, core.ErrMissingConfig("job id")
	}
	_, log := c.invocationLogger()
	handle := JobHandle{ID: jobID, SubmittedAt: time.Now()}
	log.Info("resuming job", zap.String(logging.KeyJobID, jobID))

	poller, err := c.poller(timeout, log)
	if err != nil {
		return nil, err
	}
	status, polls, err := poller.wait(ctx, handle, true, log)
	return c.finish(ctx, log, handle, status, polls, err)
}

// Status performs a single status lookup.
func (c *Client) Status(ctx context.Context, jobID string) (JobStatus, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobStatus{}, core.ErrMissingConfig("job id")
	}
	status, err := c.transport.PollOnce(ctx, JobHandle{ID: jobID})
	if err != nil {
		return JobStatus{}, fmt.Errorf("status: %w", err)
	}
	if status.JobID == "" {
		status.JobID = jobID
	}
	c.recordStatus(ctx, c.logger, status, 1)
	return status, nil
}

// Cancel asks the service to cancel a job. It fails when the transport does
// not implement Canceller.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return core.ErrMissingConfig("job id")
	}
	canceller, ok := c.transport.(Canceller)
	if !ok {
		return fmt.Errorf("cancel: transport does not support cancellation")
	}
	if err := canceller.Cancel(ctx, JobHandle{ID: jobID}); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	c.logger.Info("job cancelled", zap.String(logging.KeyJobID, jobID))
	c.recordStatus(ctx, c.logger, JobStatus{JobID: jobID, State: StateCancelled, RawState: "CANCELLED"}, 0)
	return nil
}

// finish records the final observation and maps it onto a Result or error.
func (c *Client) finish(ctx context.Context, log *logging.Logger, handle JobHandle, status JobStatus, polls int, waitErr error) (*Result, error) {
	elapsed := time.Since(handle.SubmittedAt)
	summary := logging.JobSummary{JobID: handle.ID, State: status.Label(), Polls: polls, Elapsed: elapsed}

	// Only record what was actually observed from the service.
	if status.RawState != "" || status.State != StateUnknown {
		c.recordStatus(context.WithoutCancel(ctx), log, status, polls)
	}

	if waitErr != nil {
		log.Warn("job wait ended without a result", logging.JobFields(summary), zap.Error(waitErr))
		return nil, waitErr
	}

	switch status.State {
	case StateFailed, StateCancelled:
		log.Warn("job did not complete", logging.JobFields(summary), zap.String("detail", status.Detail))
		return nil, &core.JobError{JobID: handle.ID, State: status.Label(), Detail: status.Detail}
	case StateCompleted:
	default:
		return nil, fmt.Errorf("tryon: job %s ended in non-terminal state %s", handle.ID, status.Label())
	}

	img, err := c.extractor.Extract(ctx, status)
	if err != nil {
		log.Warn("result extraction failed", logging.JobFields(summary), zap.Error(err))
		return nil, err
	}

	summary.ImageBytes = img.Len()
	summary.Format = string(img.Format())
	summary.Width, summary.Height = img.Dimensions()
	log.Info("job finished", logging.JobFields(summary))

	return &Result{Image: img, Handle: handle, Status: status, Polls: polls, Elapsed: elapsed}, nil
}

func (c *Client) poller(timeout time.Duration, log *logging.Logger) (*Poller, error) {
	cfg := c.cfg.Poller
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return NewPoller(c.transport, cfg, log)
}

// invocationLogger returns a fresh correlation id and a child logger tagged with it.
func (c *Client) invocationLogger() (string, *logging.Logger) {
	cid := uuid.NewString()
	return cid, c.logger.With(zap.String(logging.KeyCorrelationID, cid))
}

func (c *Client) recordSubmitted(ctx context.Context, log *logging.Logger, sub Submission) {
	if c.cfg.Recorder == nil {
		return
	}
	if err := c.cfg.Recorder.RecordSubmitted(ctx, sub); err != nil {
		log.Warn("failed to record submission", zap.String(logging.KeyJobID, sub.Handle.ID), zap.Error(err))
	}
}

func (c *Client) recordStatus(ctx context.Context, log *logging.Logger, status JobStatus, polls int) {
	if c.cfg.Recorder == nil || status.JobID == "" {
		return
	}
	if err := c.cfg.Recorder.RecordStatus(ctx, status.JobID, status, polls, time.Now()); err != nil {
		log.Warn("failed to record status", zap.String(logging.KeyJobID, status.JobID), zap.Error(err))
	}
}
