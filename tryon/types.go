// Package tryon drives a virtual try-on job through its lifecycle: build the
// request, submit it, poll until a terminal status, and extract the result image.
//
// The package is transport-agnostic. A Transport implementation (see package
// runpod) performs the HTTP calls; everything here works on decoded values.
package tryon

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
)

// Category is the garment region the model should replace.
type Category string

const (
	// CategoryUpper is a top: shirts, jackets.
	CategoryUpper Category = "upper"
	// CategoryLower is trousers or skirts.
	CategoryLower Category = "lower"
	// CategoryOverall is a full-body garment such as a dress.
	CategoryOverall Category = "overall"
)

// ParseCategory validates a category name. Matching is case-insensitive.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryUpper:
		return CategoryUpper, nil
	case CategoryLower:
		return CategoryLower, nil
	case CategoryOverall:
		return CategoryOverall, nil
	default:
		return "", &core.ConfigError{
			Code:    core.ErrCodeInvalidCategory,
			Message: fmt.Sprintf("Invalid category %q", s),
			Action:  "Use one of: upper, lower, overall",
		}
	}
}

// State is the decoded lifecycle state of a remote job.
type State int

const (
	// StateUnknown is any wire status not recognized. It is retried, never terminal.
	StateUnknown State = iota
	StateQueued
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobHandle identifies a submitted job.
type JobHandle struct {
	ID          string
	SubmittedAt time.Time
}

// JobStatus is one observation of a job, decoded once at the transport boundary.
type JobStatus struct {
	JobID    string
	State    State
	RawState string          // status string as sent by the service
	Detail   string          // service error string, if any
	Output   json.RawMessage // result payload; only meaningful when Completed
}

// Label returns the wire status when present, else the decoded state name.
func (s JobStatus) Label() string {
	if s.RawState != "" {
		return s.RawState
	}
	return strings.ToUpper(s.State.String())
}

// ResultImage is a decoded, immutable result.
type ResultImage struct {
	data   []byte
	format payload.Format
	width  int
	height int
}

// NewResultImage wraps decoded bytes, sniffing the format (PNG assumed when
// unrecognized) and, when the header parses, the pixel dimensions.
func NewResultImage(data []byte) *ResultImage {
	img := &ResultImage{
		data:   append([]byte(nil), data...),
		format: payload.InferFormat(data).OrPNG(),
	}
	if w, h, err := payload.DecodeConfig(data); err == nil {
		img.width, img.height = w, h
	}
	return img
}

// Bytes returns a copy of the image bytes.
func (r *ResultImage) Bytes() []byte { return append([]byte(nil), r.data...) }

// Len returns the size in bytes.
func (r *ResultImage) Len() int { return len(r.data) }

// Format returns the inferred container format.
func (r *ResultImage) Format() payload.Format { return r.format }

// Dimensions returns width and height, both 0 when the header could not be parsed.
func (r *ResultImage) Dimensions() (width, height int) { return r.width, r.height }

// Result bundles everything known about a finished job.
type Result struct {
	Image   *ResultImage
	Handle  JobHandle
	Status  JobStatus
	Polls   int
	Elapsed time.Duration
}
