package tryon

import (
	"context"
	"time"
)

// Transport performs the remote calls of the job protocol.
type Transport interface {
	StatusPoller

	// Submit enqueues req and returns its handle without waiting.
	Submit(ctx context.Context, req *JobRequest) (JobHandle, error)

	// RunSync submits req and waits server-side. The returned status may be
	// non-terminal when the server's own wait elapsed first.
	RunSync(ctx context.Context, req *JobRequest) (JobStatus, error)
}

// Canceller is implemented by transports that can cancel a queued or running job.
type Canceller interface {
	Cancel(ctx context.Context, handle JobHandle) error
}

// Submission describes a job at the moment the service accepted it.
type Submission struct {
	Handle        JobHandle
	CorrelationID string
	Request       *JobRequest
	Sync          bool
}

// Recorder persists job progress, e.g. so a timed-out job can be resumed later.
// Recording errors are logged by the Client and never fail the job.
type Recorder interface {
	RecordSubmitted(ctx context.Context, sub Submission) error
	RecordStatus(ctx context.Context, jobID string, status JobStatus, polls int, at time.Time) error
}
