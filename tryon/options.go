package tryon

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
)

// Default job parameters.
const (
	DefaultCategory = CategoryUpper
	DefaultSteps    = 50
	DefaultGuidance = 2.5
	DefaultSeed     = 42
	DefaultTimeout  = 300 * time.Second
)

// Options are the per-job parameters supplied by the caller.
type Options struct {
	// Category is the garment region. Default: upper.
	Category Category

	// Steps is the number of diffusion steps. Must be > 0. Default: 50.
	Steps int

	// Guidance is the guidance scale. Must be >= 0; zero is a valid value.
	Guidance float64

	// Seed is passed through unchanged; any value is valid.
	Seed int64

	// Timeout is the overall job deadline measured from submission. Default: 300s.
	Timeout time.Duration

	// Workflow, when set, replaces the flat input with a workflow graph.
	Workflow *Workflow

	// MaxDimension downscales embedded images whose longer side exceeds it. 0 disables.
	MaxDimension int
}

// DefaultOptions returns Options with every default applied.
// This is a pure function with no side effects.
func DefaultOptions() Options {
	return Options{
		Category: DefaultCategory,
		Steps:    DefaultSteps,
		Guidance: DefaultGuidance,
		Seed:     DefaultSeed,
		Timeout:  DefaultTimeout,
	}
}

// WithDefaults fills fields whose zero value is never valid (category, steps,
// timeout). Guidance and seed are left alone; start from DefaultOptions to get
// their defaults.
func (o Options) WithDefaults() Options {
	if o.Category == "" {
		o.Category = DefaultCategory
	}
	if o.Steps == 0 {
		o.Steps = DefaultSteps
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o Options) Validate() error {
	if _, err := ParseCategory(string(o.Category)); err != nil {
		return err
	}
	if o.Steps <= 0 {
		return core.ErrInvalidValue("steps", o.Steps, "must be greater than 0")
	}
	if o.Guidance < 0 || math.IsNaN(o.Guidance) || math.IsInf(o.Guidance, 0) {
		return core.ErrInvalidValue("guidance", o.Guidance, "must be a finite number >= 0")
	}
	if o.Timeout <= 0 {
		return core.ErrInvalidValue("timeout", o.Timeout, "must be greater than 0")
	}
	if o.MaxDimension < 0 {
		return core.ErrInvalidValue("max dimension", o.MaxDimension, "must be 0 (disabled) or positive")
	}
	return nil
}

// Mode selects how images travel in the request body.
type Mode string

const (
	// ModeEmbedded sends image bytes inline as base64 or data URIs.
	ModeEmbedded Mode = "embedded"
	// ModeByReference sends image URLs for the worker to download.
	ModeByReference Mode = "by-reference"
	// ModeAuto picks embedded for local sources and by-reference for URLs.
	ModeAuto Mode = "auto"
)

// ParseMode validates a submission mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "embedded", "embed", "inline":
		return ModeEmbedded, nil
	case "by-reference", "reference", "url":
		return ModeByReference, nil
	default:
		return "", &core.ConfigError{
			Code:    core.ErrCodeUnsupportedMode,
			Message: fmt.Sprintf("Invalid submit mode %q", s),
			Action:  "Use one of: embedded, by-reference, auto",
		}
	}
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// Mode selects embedded, by-reference or auto submission. Default: auto.
	Mode Mode

	// Encoding is used for embedded bytes. Default: base64.
	Encoding payload.Encoding

	// FetchRemote lets embedded mode download URL sources and embed them.
	FetchRemote bool

	// FetchTimeout bounds each remote download. Default: 10s.
	FetchTimeout time.Duration
}

// DefaultBuilderConfig returns the default builder configuration.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Mode:         ModeAuto,
		Encoding:     payload.EncodingBase64,
		FetchTimeout: core.DefaultFetchTimeout,
	}
}
