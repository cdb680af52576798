package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
)

// Subcommands.
const (
	cmdRun     = "run"
	cmdResume  = "resume"
	cmdStatus  = "status"
	cmdCancel  = "cancel"
	cmdHealth  = "health"
	cmdHistory = "history"
)

var commands = map[string]bool{
	cmdRun: true, cmdResume: true, cmdStatus: true,
	cmdCancel: true, cmdHealth: true, cmdHistory: true,
}

// cliOptions holds parsed command line flags. Config overrides are applied
// only for flags the user actually set.
type cliOptions struct {
	command string
	jobID   string

	configPath string
	person     string
	garment    string
	output     string

	category     string
	steps        int
	guidance     float64
	seed         int64
	timeout      time.Duration
	poll         time.Duration
	mode         string
	encoding     string
	workflow     string
	maxDimension int
	fetchRemote  bool

	sync              bool
	cancelOnInterrupt bool
	limit             int
	pruneDays         int
	version           bool

	set map[string]bool
}

const usageText = `Usage: tryon [command] [flags]

Commands:
  run                 submit a try-on job and wait for the image (default)
  resume <job-id>     wait on an existing job and save its image
  status <job-id>     print the current status of a job
  cancel <job-id>     cancel a queued or running job
  health              print endpoint worker and queue counts
  history             list recorded jobs (needs TRYON_HISTORY_DB)

Flags may appear before or after the job id.

Flags:
`

// parseArgs splits args into a command and its flags. The command defaults
// to run when the first argument is a flag.
func parseArgs(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{command: cmdRun, set: map[string]bool{}}
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		if !commands[args[0]] {
			return nil, core.ErrInvalidValue("command", args[0], "must be one of run, resume, status, cancel, health, history")
		}
		opts.command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("tryon "+opts.command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "YAML config file (default $TRYON_CONFIG)")
	fs.StringVar(&opts.person, "person", "", "subject image: local path, http(s) URL or data URI")
	fs.StringVar(&opts.garment, "garment", "", "garment image: local path, http(s) URL or data URI")
	fs.StringVar(&opts.output, "output", "", "result file (default <output_dir>/tryon_<job-id>.<ext>)")
	fs.StringVar(&opts.category, "category", core.DefaultCategory, "garment category: upper, lower or overall")
	fs.IntVar(&opts.steps, "steps", core.DefaultSteps, "number of inference steps")
	fs.Float64Var(&opts.guidance, "guidance", core.DefaultGuidance, "guidance scale")
	fs.Int64Var(&opts.seed, "seed", core.DefaultSeed, "random seed")
	fs.DurationVar(&opts.timeout, "timeout", core.DefaultJobTimeout, "overall job deadline")
	fs.DurationVar(&opts.poll, "poll", core.DefaultPollInterval, "status poll interval")
	fs.StringVar(&opts.mode, "mode", core.DefaultSubmitMode, "submit mode: embedded, by-reference or auto")
	fs.StringVar(&opts.encoding, "encoding", core.DefaultEmbedEncoding, "embedded image encoding: base64 or data-uri")
	fs.StringVar(&opts.workflow, "workflow", "", "JSON or YAML workflow graph to submit instead of the flat input")
	fs.IntVar(&opts.maxDimension, "max-dim", 0, "downscale embedded images whose longer side exceeds this (0 disables)")
	fs.BoolVar(&opts.fetchRemote, "fetch-remote", false, "download URL sources and embed them")
	fs.BoolVar(&opts.sync, "sync", false, "use the synchronous runsync call")
	fs.BoolVar(&opts.cancelOnInterrupt, "cancel-on-interrupt", false, "cancel the remote job on Ctrl-C")
	fs.IntVar(&opts.limit, "limit", 20, "history: number of jobs to list")
	fs.IntVar(&opts.pruneDays, "prune-days", 0, "history: delete jobs older than this many days first")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	// Flags may follow positional arguments, as in "resume <job-id> -timeout 10m".
	var rest []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		rest = append(rest, args[0])
		args = args[1:]
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	switch opts.command {
	case cmdResume, cmdStatus, cmdCancel:
		if opts.version {
			break
		}
		if len(rest) != 1 || strings.TrimSpace(rest[0]) == "" {
			return nil, core.ErrMissingConfig(opts.command + " <job-id>")
		}
		opts.jobID = strings.TrimSpace(rest[0])
	default:
		if len(rest) > 0 {
			return nil, core.ErrInvalidValue("argument", rest[0], "unexpected positional argument")
		}
	}
	if opts.pruneDays < 0 {
		return nil, core.ErrInvalidValue("prune-days", opts.pruneDays, "must be 0 or greater")
	}
	return opts, nil
}

// apply copies explicitly set flags over cfg and re-validates it.
func (o *cliOptions) apply(cfg *core.Config) error {
	if o.set["category"] {
		cfg.Category = o.category
	}
	if o.set["steps"] {
		cfg.Steps = o.steps
	}
	if o.set["guidance"] {
		cfg.Guidance = o.guidance
	}
	if o.set["seed"] {
		cfg.Seed = o.seed
	}
	if o.set["timeout"] {
		cfg.JobTimeout = o.timeout
	}
	if o.set["poll"] {
		cfg.PollInterval = o.poll
	}
	if o.set["mode"] {
		cfg.SubmitMode = o.mode
	}
	if o.set["encoding"] {
		cfg.EmbedEncoding = o.encoding
	}
	if o.set["workflow"] {
		cfg.WorkflowPath = o.workflow
	}
	if o.set["max-dim"] {
		cfg.MaxImageDimension = o.maxDimension
	}
	if o.set["fetch-remote"] {
		cfg.FetchRemote = o.fetchRemote
	}
	return cfg.Validate()
}
