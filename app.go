package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/db"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/runpod"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/tryon"
)

// cancelTimeout bounds the best-effort cancel sent after an interrupt.
const cancelTimeout = 10 * time.Second

// run is the testable entry point. It returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	out := newPrinter(stdout, stderr)

	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return core.ExitCodeSuccess
		}
		if _, ok := core.IsConfigError(err); ok {
			out.failure(err)
		}
		return core.ExitCodeConfig
	}
	if opts.version {
		fmt.Fprintf(stdout, "tryon %s\n", core.GetVersionInfo())
		return core.ExitCodeSuccess
	}

	cfg, err := core.LoadConfig(opts.configPath)
	if err != nil {
		out.failure(err)
		return core.ExitCodeFor(err)
	}
	if err := opts.apply(cfg); err != nil {
		out.failure(err)
		return core.ExitCodeFor(err)
	}

	logger, err := logging.NewLogger(logging.Options{
		Development: cfg.DevMode,
		Level:       logging.ParseLogLevelString(cfg.LogLevel, logging.InfoLevel),
		FilePath:    cfg.LogFile,
	})
	if err != nil {
		out.failure(fmt.Errorf("failed to initialize logger: %w", err))
		return core.ExitCodeError
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, opts, logger, out)
	if err != nil {
		out.failure(err)
		return core.ExitCodeFor(err)
	}
	defer a.close()

	err = a.dispatch(ctx)
	if err != nil {
		logger.Error("command failed", zap.String("command", opts.command), zap.Error(err))
		out.failure(err)
	}
	return core.ExitCodeFor(err)
}

// app holds the wired components for one invocation.
type app struct {
	cfg    *core.Config
	opts   *cliOptions
	logger *logging.Logger
	out    *printer

	remote    *runpod.Client
	transport *trackingTransport
	builder   *tryon.Builder
	client    *tryon.Client

	history *db.Database
	jobs    *db.JobRepository
}

func newApp(cfg *core.Config, opts *cliOptions, logger *logging.Logger, out *printer) (*app, error) {
	a := &app{cfg: cfg, opts: opts, logger: logger, out: out}

	if cfg.HasHistory() {
		database, err := db.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open job history: %w", err)
		}
		a.history = database
		a.jobs = db.NewJobRepository(database, cfg.EndpointID)
		logger.Debug("job history enabled", zap.String("path", database.Path()))
	}

	if opts.command == cmdHistory {
		if a.history == nil {
			return nil, core.ErrMissingConfig("TRYON_HISTORY_DB")
		}
		return a, nil
	}

	if err := a.wireRemote(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireRemote() error {
	if err := a.cfg.RequireEndpoint(); err != nil {
		return err
	}

	remote, err := runpod.NewClient(runpod.ConfigFromCore(a.cfg), core.GetHTTPClient(a.cfg, 0), a.logger)
	if err != nil {
		return err
	}
	a.remote = remote
	a.transport = &trackingTransport{Client: remote}

	fetcher := payload.NewFetcher(core.GetHTTPClient(a.cfg, 0), a.cfg.MaxFileSize, a.logger)

	mode, err := tryon.ParseMode(a.cfg.SubmitMode)
	if err != nil {
		return err
	}
	encoding, err := payload.ParseEncoding(a.cfg.EmbedEncoding)
	if err != nil {
		return err
	}
	a.builder, err = tryon.NewBuilder(tryon.BuilderConfig{
		Mode:         mode,
		Encoding:     encoding,
		FetchRemote:  a.cfg.FetchRemote,
		FetchTimeout: a.cfg.FetchTimeout,
	}, fetcher, a.logger)
	if err != nil {
		return err
	}

	extractor := tryon.NewExtractor(tryon.ExtractorConfig{FetchTimeout: a.cfg.FetchTimeout}, fetcher, a.logger)

	clientCfg := tryon.ClientConfig{
		Poller: tryon.PollerConfig{
			Interval:             a.cfg.PollInterval,
			Timeout:              a.cfg.JobTimeout,
			MaxTransportFailures: a.cfg.MaxTransportFailures,
			OnStatus:             a.out.status,
		},
	}
	if a.jobs != nil {
		clientCfg.Recorder = a.jobs
	}
	a.client, err = tryon.NewClient(a.transport, extractor, clientCfg, a.logger)
	return err
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("failed to close job history", zap.Error(err))
		}
	}
}

func (a *app) dispatch(ctx context.Context) error {
	switch a.opts.command {
	case cmdResume:
		return a.resume(ctx)
	case cmdStatus:
		return a.status(ctx)
	case cmdCancel:
		return a.client.Cancel(ctx, a.opts.jobID)
	case cmdHealth:
		return a.health(ctx)
	case cmdHistory:
		return a.listHistory(ctx)
	default:
		return a.runJobs(ctx)
	}
}

// jobOptions builds per-job options from the merged configuration.
func (a *app) jobOptions() (tryon.Options, error) {
	category, err := tryon.ParseCategory(a.cfg.Category)
	if err != nil {
		return tryon.Options{}, err
	}
	opts := tryon.Options{
		Category:     category,
		Steps:        a.cfg.Steps,
		Guidance:     a.cfg.Guidance,
		Seed:         a.cfg.Seed,
		Timeout:      a.cfg.JobTimeout,
		MaxDimension: a.cfg.MaxImageDimension,
	}
	if a.cfg.WorkflowPath != "" {
		wf, err := tryon.LoadWorkflow(a.cfg.WorkflowPath)
		if err != nil {
			return tryon.Options{}, err
		}
		opts.Workflow = wf
	}
	return opts, nil
}

func (a *app) runJobs(ctx context.Context) error {
	if a.opts.person == "" {
		return core.ErrMissingConfig("-person")
	}
	garments := splitList(a.opts.garment)
	if len(garments) == 0 {
		return core.ErrMissingConfig("-garment")
	}
	opts, err := a.jobOptions()
	if err != nil {
		return err
	}

	if len(garments) > 1 {
		if a.opts.sync {
			return core.ErrInvalidValue("-sync", true, "cannot be combined with several garments")
		}
		return a.runBatch(ctx, garments, opts)
	}

	req, err := a.builder.Build(ctx, a.opts.person, garments[0], opts)
	if err != nil {
		return err
	}

	a.out.header("Virtual Try-On")
	var res *tryon.Result
	if a.opts.sync {
		res, err = a.client.RunSync(ctx, req)
	} else {
		res, err = a.client.Run(ctx, req)
	}
	if err != nil {
		a.cancelAfterInterrupt(ctx, err)
		return err
	}
	return a.save(res, a.opts.output)
}

// runBatch submits one job per garment against the same subject.
func (a *app) runBatch(ctx context.Context, garments []string, opts tryon.Options) error {
	reqs := make([]*tryon.JobRequest, len(garments))
	for i, g := range garments {
		req, err := a.builder.Build(ctx, a.opts.person, g, opts)
		if err != nil {
			return fmt.Errorf("garment %s: %w", g, err)
		}
		reqs[i] = req
	}

	a.out.header(fmt.Sprintf("Virtual Try-On (%d garments)", len(reqs)))
	var errs []error
	for _, r := range a.client.RunBatch(ctx, reqs, tryon.DefaultBatchConcurrency) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("garment %s: %w", garments[r.Index], r.Err))
			continue
		}
		if err := a.save(r.Result, ""); err != nil {
			errs = append(errs, err)
		}
	}
	if ctx.Err() != nil {
		a.cancelAfterInterrupt(ctx, ctx.Err())
	}
	return errors.Join(errs...)
}

func (a *app) resume(ctx context.Context) error {
	a.out.header("Resume " + a.opts.jobID)
	if a.jobs != nil {
		if rec, err := a.jobs.Get(ctx, a.opts.jobID); err == nil && !rec.Resumable() {
			a.logger.Info("job already finished, fetching its result",
				zap.String(logging.KeyJobID, rec.JobID), zap.String(logging.KeyState, rec.State))
		}
	}
	res, err := a.client.Resume(ctx, a.opts.jobID, a.cfg.JobTimeout)
	if err != nil {
		return err
	}
	return a.save(res, a.opts.output)
}

func (a *app) status(ctx context.Context) error {
	s, err := a.client.Status(ctx, a.opts.jobID)
	if err != nil {
		return err
	}
	a.out.jobStatus(s)
	return nil
}

func (a *app) health(ctx context.Context) error {
	h, err := a.remote.Health(ctx)
	if err != nil {
		return err
	}
	a.out.health(h)
	return nil
}

func (a *app) listHistory(ctx context.Context) error {
	if a.opts.pruneDays > 0 {
		res, err := a.history.Prune(ctx, time.Duration(a.opts.pruneDays)*24*time.Hour)
		if err != nil {
			return err
		}
		a.out.pruned(res)
	}
	records, err := a.jobs.ListRecent(ctx, a.opts.limit)
	if err != nil {
		return err
	}
	a.out.history(records)
	return nil
}

// save writes the result image to path, or to the output directory under a
// name derived from the job id when path is empty.
func (a *app) save(res *tryon.Result, path string) error {
	if path == "" {
		path = defaultOutputPath(a.cfg.OutputDir, res.Handle.ID, res.Image.Format())
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &core.IOError{Path: dir, Err: err}
		}
	}
	if err := os.WriteFile(path, res.Image.Bytes(), 0o644); err != nil {
		return &core.IOError{Path: path, Err: err}
	}
	a.logger.Info("result saved", zap.String("path", path), zap.String(logging.KeyJobID, res.Handle.ID))
	a.out.saved(path, res)
	return nil
}

// cancelAfterInterrupt cancels the in-flight job when the wait was
// interrupted and -cancel-on-interrupt is set.
func (a *app) cancelAfterInterrupt(ctx context.Context, err error) {
	if !a.opts.cancelOnInterrupt || ctx.Err() == nil || !errors.Is(err, context.Canceled) {
		return
	}
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	for _, id := range a.transport.pending() {
		if cerr := a.client.Cancel(cancelCtx, id); cerr != nil {
			a.logger.Warn("failed to cancel job after interrupt", zap.String(logging.KeyJobID, id), zap.Error(cerr))
			continue
		}
		a.out.status(tryon.JobStatus{JobID: id, State: tryon.StateCancelled, RawState: "CANCELLED"})
	}
}

func defaultOutputPath(dir, jobID string, format payload.Format) string {
	if dir == "" {
		dir = core.DefaultOutputDir
	}
	name := jobID
	if name == "" {
		name = time.Now().UTC().Format("20060102T150405")
	}
	return filepath.Join(dir, "tryon_"+name+format.OrPNG().Extension())
}

func splitList(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// trackingTransport remembers the ids of submitted jobs that have not yet
// been seen in a terminal state, so they can be cancelled after an interrupt.
type trackingTransport struct {
	*runpod.Client

	mu  sync.Mutex
	ids []string
}

func (t *trackingTransport) Submit(ctx context.Context, req *tryon.JobRequest) (tryon.JobHandle, error) {
	handle, err := t.Client.Submit(ctx, req)
	if err == nil {
		t.track(handle.ID)
	}
	return handle, err
}

func (t *trackingTransport) RunSync(ctx context.Context, req *tryon.JobRequest) (tryon.JobStatus, error) {
	status, err := t.Client.RunSync(ctx, req)
	if err == nil && !status.State.Terminal() {
		t.track(status.JobID)
	}
	return status, err
}

func (t *trackingTransport) PollOnce(ctx context.Context, handle tryon.JobHandle) (tryon.JobStatus, error) {
	status, err := t.Client.PollOnce(ctx, handle)
	if err == nil && status.State.Terminal() {
		t.untrack(handle.ID)
	}
	return status, err
}

func (t *trackingTransport) track(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	t.ids = append(t.ids, id)
	t.mu.Unlock()
}

func (t *trackingTransport) untrack(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, tracked := range t.ids {
		if tracked == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			return
		}
	}
}

func (t *trackingTransport) pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ids...)
}
