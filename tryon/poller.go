package tryon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"go.uber.org/zap"
)

// Default poller settings.
const (
	DefaultPollInterval         = 5 * time.Second
	DefaultMaxTransportFailures = 3
)

// StatusPoller performs a single status lookup without sleeping.
type StatusPoller interface {
	PollOnce(ctx context.Context, handle JobHandle) (JobStatus, error)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between polls. Default: 5s.
	Interval time.Duration

	// Timeout is the overall deadline measured from JobHandle.SubmittedAt. Default: 300s.
	Timeout time.Duration

	// MaxTransportFailures is the budget of consecutive transport errors. Default: 3.
	MaxTransportFailures int

	// OnStatus, if set, is called whenever the observed state changes.
	// It runs on the polling goroutine and must not block.
	OnStatus func(JobStatus)
}

// DefaultPollerConfig returns the default poller configuration.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:             DefaultPollInterval,
		Timeout:              DefaultTimeout,
		MaxTransportFailures: DefaultMaxTransportFailures,
	}
}

// Poller waits for a job to reach a terminal state.
//
// A Poller holds no per-job state; one instance may wait on many jobs
// concurrently.
type Poller struct {
	transport StatusPoller
	cfg       PollerConfig
	logger    *logging.Logger
}

// NewPoller creates a Poller. Zero config fields take their defaults.
func NewPoller(transport StatusPoller, cfg PollerConfig, logger *logging.Logger) (*Poller, error) {
	if transport == nil {
		return nil, fmt.Errorf("poller: transport cannot be nil")
	}
	if cfg.Interval < 0 || cfg.Timeout < 0 || cfg.MaxTransportFailures < 0 {
		return nil, fmt.Errorf("poller: interval, timeout and failure budget must not be negative")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTransportFailures == 0 {
		cfg.MaxTransportFailures = DefaultMaxTransportFailures
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller{transport: transport, cfg: cfg, logger: logger.Named("poller")}, nil
}

// Config returns the effective configuration.
func (p *Poller) Config() PollerConfig { return p.cfg }

// Wait sleeps one interval, polls, and repeats until the job is terminal.
//
// Errors:
//   - *core.TimeoutError when the deadline passes first (the job may still run)
//   - the last *core.TransportError once the consecutive-failure budget is spent
//   - any non-retryable transport error (e.g. *core.AuthError) immediately
//   - ctx.Err(), wrapped, when the context is cancelled
func (p *Poller) Wait(ctx context.Context, handle JobHandle) (JobStatus, error) {
	status, _, err := p.wait(ctx, handle, false, p.logger)
	return status, err
}

// wait runs the poll loop. With immediate set, the first poll happens without
// sleeping (used when resuming an existing job). It returns the number of
// PollOnce calls made.
func (p *Poller) wait(ctx context.Context, handle JobHandle, immediate bool, log *logging.Logger) (JobStatus, int, error) {
	start := handle.SubmittedAt
	if start.IsZero() {
		start = time.Now()
	}
	deadline := start.Add(p.cfg.Timeout)

	last := JobStatus{JobID: handle.ID, State: StateUnknown}
	lastLabel := "SUBMITTED"
	polls := 0
	failures := 0

	expired := func() error {
		return &core.TimeoutError{
			JobID:     handle.ID,
			Elapsed:   time.Since(start),
			Deadline:  p.cfg.Timeout,
			LastState: lastLabel,
		}
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return last, polls, expired()
		}

		if !immediate {
			if err := sleepCtx(ctx, min(p.cfg.Interval, remaining)); err != nil {
				return last, polls, fmt.Errorf("poller: wait for job %s: %w", handle.ID, err)
			}
		}
		immediate = false

		// A single status call never runs past the job deadline.
		pollCtx, cancel := context.WithDeadline(ctx, deadline)
		status, err := p.transport.PollOnce(pollCtx, handle)
		hitDeadline := errors.Is(pollCtx.Err(), context.DeadlineExceeded)
		cancel()
		polls++
		if err != nil {
			if ctx.Err() != nil {
				return last, polls, fmt.Errorf("poller: wait for job %s: %w", handle.ID, ctx.Err())
			}
			if hitDeadline {
				return last, polls, expired()
			}
			if !core.IsRetryable(err) {
				return last, polls, fmt.Errorf("poller: job %s: %w", handle.ID, err)
			}
			failures++
			log.Warn("status poll failed",
				zap.String(logging.KeyJobID, handle.ID),
				zap.Int("consecutive_failures", failures),
				zap.Int("budget", p.cfg.MaxTransportFailures),
				zap.Error(err))
			if failures >= p.cfg.MaxTransportFailures {
				return last, polls, fmt.Errorf("poller: job %s: giving up after %d consecutive transport failures: %w",
					handle.ID, failures, err)
			}
			continue
		}
		failures = 0

		if status.JobID == "" {
			status.JobID = handle.ID
		}
		log.Debug("status polled",
			zap.String(logging.KeyJobID, handle.ID),
			zap.String(logging.KeyState, status.Label()),
			zap.Int("poll", polls))

		if status.Label() != lastLabel {
			log.Info("job status changed",
				zap.String(logging.KeyJobID, handle.ID),
				zap.String("from", lastLabel),
				zap.String("to", status.Label()),
				zap.Duration("elapsed", time.Since(start)))
			if p.cfg.OnStatus != nil {
				p.cfg.OnStatus(status)
			}
		}
		last = status
		lastLabel = status.Label()

		if status.State.Terminal() {
			return status, polls, nil
		}
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
