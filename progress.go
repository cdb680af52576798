package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/db"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/runpod"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/tryon"
)

// printer writes human-facing progress to stdout and failures to stderr.
// Structured logs go through the logger, never through printer.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func newPrinter(stdout, stderr io.Writer) *printer {
	return &printer{out: stdout, err: stderr}
}

func (p *printer) header(title string) {
	color.New(color.FgCyan, color.Bold).Fprintf(p.out, "━━━ %s ━━━\n", title)
}

// status prints one state transition. It is installed as the poller's
// OnStatus hook, so concurrent batch jobs may call it at once.
func (p *printer) status(s tryon.JobStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var icon string
	var clr *color.Color

	switch s.State {
	case tryon.StateQueued:
		icon = "◌"
		clr = color.New(color.FgHiBlack)
	case tryon.StateRunning:
		icon = "▶"
		clr = color.New(color.FgYellow)
	case tryon.StateCompleted:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case tryon.StateFailed, tryon.StateCancelled:
		icon = "✗"
		clr = color.New(color.FgRed)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	clr.Fprintf(p.out, "  %s %s %s", icon, s.JobID, s.Label())
	if s.Detail != "" {
		color.New(color.FgHiBlack).Fprintf(p.out, " - %s", s.Detail)
	}
	fmt.Fprintln(p.out)
}

func (p *printer) saved(path string, res *tryon.Result) {
	w, h := res.Image.Dimensions()
	color.New(color.FgGreen, color.Bold).Fprintf(p.out, "━━━ Saved %s ", path)
	dim := color.New(color.FgHiBlack)
	if w > 0 && h > 0 {
		dim.Fprintf(p.out, "(%s, %dx%d, %s, %d polls in %v)",
			res.Image.Format(), w, h, core.FormatBytes(int64(res.Image.Len())), res.Polls, res.Elapsed.Round(time.Millisecond))
	} else {
		dim.Fprintf(p.out, "(%s, %s, %d polls in %v)",
			res.Image.Format(), core.FormatBytes(int64(res.Image.Len())), res.Polls, res.Elapsed.Round(time.Millisecond))
	}
	color.New(color.FgGreen, color.Bold).Fprintln(p.out, " ━━━")
}

// failure prints err and any follow-up hint to stderr.
func (p *printer) failure(err error) {
	failColor := color.New(color.FgRed, color.Bold)
	failColor.Fprintf(p.err, "✗ %s (%s)\n", err.Error(), core.ExitCodeName(core.ExitCodeFor(err)))

	var timeoutErr *core.TimeoutError
	if errors.As(err, &timeoutErr) && timeoutErr.JobID != "" {
		color.New(color.FgYellow).Fprintf(p.err, "    └─ resume with: tryon resume %s\n", timeoutErr.JobID)
	}
	var authErr *core.AuthError
	if errors.As(err, &authErr) {
		color.New(color.FgYellow).Fprintln(p.err, "    └─ check RUNPOD_API_KEY")
	}
}

func (p *printer) jobStatus(s tryon.JobStatus) {
	fmt.Fprintf(p.out, "%s\t%s\n", s.JobID, s.Label())
	if s.Detail != "" {
		color.New(color.FgHiBlack).Fprintf(p.out, "  %s\n", s.Detail)
	}
}

func (p *printer) health(h runpod.Health) {
	p.header("Endpoint Health")
	fmt.Fprintf(p.out, "  %-14s %d\n", "in queue", h.Jobs.InQueue)
	fmt.Fprintf(p.out, "  %-14s %d\n", "in progress", h.Jobs.InProgress)
	fmt.Fprintf(p.out, "  %-14s %d\n", "completed", h.Jobs.Completed)
	fmt.Fprintf(p.out, "  %-14s %d\n", "failed", h.Jobs.Failed)
	fmt.Fprintf(p.out, "  %-14s %d\n", "retried", h.Jobs.Retried)
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "  %-14s %d\n", "idle", h.Workers.Idle)
	fmt.Fprintf(p.out, "  %-14s %d\n", "ready", h.Workers.Ready)
	fmt.Fprintf(p.out, "  %-14s %d\n", "running", h.Workers.Running)
	fmt.Fprintf(p.out, "  %-14s %d\n", "initializing", h.Workers.Initializing)
	fmt.Fprintf(p.out, "  %-14s %d\n", "throttled", h.Workers.Throttled)
	fmt.Fprintf(p.out, "  %-14s %d\n", "unhealthy", h.Workers.Unhealthy)
	if h.Available() {
		color.New(color.FgGreen).Fprintln(p.out, "  ✓ workers available")
	} else {
		color.New(color.FgYellow).Fprintln(p.out, "  ! no workers available, jobs will queue")
	}
}

func (p *printer) pruned(res db.PruneResult) {
	color.New(color.FgHiBlack).Fprintf(p.out, "pruned %d jobs and %d events in %v\n",
		res.JobsDeleted, res.EventsDeleted, res.Duration.Round(time.Millisecond))
}

func (p *printer) history(records []db.JobRecord) {
	if len(records) == 0 {
		fmt.Fprintln(p.out, "no jobs recorded")
		return
	}
	fmt.Fprintf(p.out, "%-36s  %-12s  %-8s  %5s  %-19s  %s\n", "JOB ID", "STATE", "CATEGORY", "POLLS", "SUBMITTED", "")
	for _, r := range records {
		marker := ""
		if r.Resumable() {
			marker = "resumable"
		}
		fmt.Fprintf(p.out, "%-36s  %-12s  %-8s  %5d  %-19s  %s\n",
			r.JobID, r.State, r.Category, r.Polls, r.SubmittedAt.Local().Format("2006-01-02 15:04:05"), marker)
	}
}
