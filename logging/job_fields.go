package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field keys shared by every component that logs about a job.
const (
	KeyCorrelationID = "correlation_id"
	KeyJobID         = "job_id"
	KeyState         = "state"
	KeyEndpointID    = "endpoint_id"
)

// JobSummary describes a finished (or abandoned) job for a single summary log line.
// Implements zapcore.ObjectMarshaler.
type JobSummary struct {
	JobID      string
	State      string
	Polls      int
	Elapsed    time.Duration
	ImageBytes int
	Format     string
	Width      int
	Height     int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
// Empty optional fields are omitted; elapsed time is encoded in milliseconds.
func (s JobSummary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(KeyJobID, s.JobID)
	enc.AddString(KeyState, s.State)
	enc.AddInt("polls", s.Polls)
	enc.AddInt64("elapsed_ms", s.Elapsed.Milliseconds())
	if s.ImageBytes > 0 {
		enc.AddInt("image_bytes", s.ImageBytes)
	}
	if s.Format != "" {
		enc.AddString("format", s.Format)
	}
	if s.Width > 0 && s.Height > 0 {
		enc.AddInt("width", s.Width)
		enc.AddInt("height", s.Height)
	}
	return nil
}

// JobFields returns the summary as a nested "job" object field.
//
//	logger.Info("job finished", logging.JobFields(summary))
func JobFields(s JobSummary) zap.Field {
	return zap.Object("job", s)
}

// CorrelationFields returns the fields attached to every log line of one invocation.
func CorrelationFields(correlationID, endpointID string) []zap.Field {
	return []zap.Field{
		zap.String(KeyCorrelationID, correlationID),
		zap.String(KeyEndpointID, endpointID),
	}
}
