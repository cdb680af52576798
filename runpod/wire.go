package runpod

import (
	"encoding/json"
	"strings"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/tryon"
)

// Wire status strings.
const (
	statusInQueue    = "IN_QUEUE"
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"
	statusFailed     = "FAILED"
	statusCancelled  = "CANCELLED"
	statusTimedOut   = "TIMED_OUT"
)

// timedOutDetail is reported when the service's own execution timeout fired.
const timedOutDetail = "timed out on the service"

// jobResponse is the shape shared by run, runsync, status and cancel responses.
type jobResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`

	DelayTime     int64 `json:"delayTime,omitempty"`
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// errorText renders the error field, which is a string on most workers but
// an object on some.
func (r jobResponse) errorText() string {
	if len(r.Error) == 0 || string(r.Error) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		return s
	}
	return string(r.Error)
}

// toStatus decodes a response into a JobStatus.
func (r jobResponse) toStatus() tryon.JobStatus {
	raw := strings.ToUpper(strings.TrimSpace(r.Status))
	status := tryon.JobStatus{
		JobID:    r.ID,
		State:    mapState(raw),
		RawState: raw,
		Detail:   r.errorText(),
		Output:   r.Output,
	}
	if raw == statusTimedOut && status.Detail == "" {
		status.Detail = timedOutDetail
	}
	return status
}

// mapState maps a wire status onto a State. Unrecognized strings are Unknown.
func mapState(raw string) tryon.State {
	switch raw {
	case statusInQueue:
		return tryon.StateQueued
	case statusInProgress:
		return tryon.StateRunning
	case statusCompleted:
		return tryon.StateCompleted
	case statusFailed, statusTimedOut:
		return tryon.StateFailed
	case statusCancelled:
		return tryon.StateCancelled
	default:
		return tryon.StateUnknown
	}
}

// Health is the endpoint's worker and queue summary.
type Health struct {
	Jobs    JobCounts    `json:"jobs"`
	Workers WorkerCounts `json:"workers"`
}

// JobCounts are the job totals reported by the health call.
type JobCounts struct {
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	InProgress int `json:"inProgress"`
	InQueue    int `json:"inQueue"`
	Retried    int `json:"retried"`
}

// WorkerCounts are the worker totals reported by the health call.
type WorkerCounts struct {
	Idle         int `json:"idle"`
	Initializing int `json:"initializing"`
	Ready        int `json:"ready"`
	Running      int `json:"running"`
	Throttled    int `json:"throttled"`
	Unhealthy    int `json:"unhealthy"`
}

// Available reports whether any worker can take a job right now.
func (h Health) Available() bool {
	return h.Workers.Idle+h.Workers.Ready+h.Workers.Running > 0
}
