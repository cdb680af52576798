package core

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError represents bad caller input or configuration with actionable instructions.
// It is never retried.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingConfig   = "MISSING_CONFIG"
	ErrCodeInvalidValue    = "INVALID_VALUE"
	ErrCodeInvalidCategory = "INVALID_CATEGORY"
	ErrCodeMixedSources    = "MIXED_SOURCES"
	ErrCodeUnsupportedMode = "UNSUPPORTED_MODE"
	ErrCodeConfigFile      = "CONFIG_FILE"
	ErrCodeInvalidWorkflow = "INVALID_WORKFLOW"
	ErrCodeInvalidStatus   = "INVALID_STATUS"
	ErrCodeUnsupportedURI  = "UNSUPPORTED_URI"
)

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your environment, .env file or config file", varName),
	}
}

// ErrInvalidValue returns an error for a configuration value that failed validation.
func ErrInvalidValue(name string, value interface{}, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s %v: %s", name, value, reason),
	}
}

// ErrUnsupportedURI returns an error for an image source written as a URI the
// client cannot load.
func ErrUnsupportedURI(name, source, scheme string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnsupportedURI,
		Message: fmt.Sprintf("Unsupported URI scheme %q for %s: %s", scheme, name, source),
		Action:  "Use a local file path, an http(s) URL with a host, or a data: URI",
	}
}

// ErrMixedSources returns an error when the subject and garment images would be
// submitted in different modes.
func ErrMixedSources(mode, subjectKind, garmentKind string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMixedSources,
		Message: fmt.Sprintf("Cannot mix image sources in %s mode (subject is %s, garment is %s)", mode, subjectKind, garmentKind),
		Action:  "Use two local files or two URLs, or enable remote fetching for embedded mode",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}

// AuthError reports missing or rejected credentials. It is fatal to the invocation.
type AuthError struct {
	StatusCode int    // HTTP status, 0 when the token was missing locally
	Body       string // Raw response body, if any
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return "authentication failed: API key is empty"
	}
	if e.Body != "" {
		return fmt.Sprintf("authentication failed: status %d: %s", e.StatusCode, truncate(e.Body, 256))
	}
	return fmt.Sprintf("authentication failed: status %d", e.StatusCode)
}

// TransportError reports a network or HTTP level failure. The poller retries it
// up to its consecutive-failure budget.
type TransportError struct {
	Op         string // "submit", "status", "runsync", "cancel", "health"
	StatusCode int    // 0 when no response was received
	Body       string
	Timeout    bool // the per-call deadline expired
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, truncate(e.Body, 256))
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// EncodingError reports a payload that could not be encoded.
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encode payload: %s: %v", e.Reason, e.Err)
	}
	return "encode payload: " + e.Reason
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports malformed base64 or data-URI text.
type DecodingError struct {
	Reason string
	Err    error
}

func (e *DecodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode payload: %s: %v", e.Reason, e.Err)
	}
	return "decode payload: " + e.Reason
}

func (e *DecodingError) Unwrap() error { return e.Err }

// NotFoundError reports a local image path that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("image not found: %s", e.Path)
}

// IOError reports a local read failure other than a missing file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FetchError reports a failed remote image download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TimeoutError reports that the overall job deadline expired before a terminal
// status was observed. The job may still be running on the service.
type TimeoutError struct {
	JobID     string
	Elapsed   time.Duration
	Deadline  time.Duration
	LastState string
}

func (e *TimeoutError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("job did not finish within %v (no job id was returned); it may still be running on the service",
			e.Deadline)
	}
	return fmt.Sprintf("job %s did not finish within %v (last status %s after %v); it may still be running on the service",
		e.JobID, e.Deadline, e.LastState, e.Elapsed.Round(time.Millisecond))
}

// JobError reports a job the service marked as failed, cancelled or rejected.
type JobError struct {
	JobID  string
	State  string
	Detail string // The service's own error string, when available
}

func (e *JobError) Error() string {
	id := e.JobID
	if id == "" {
		id = "(no id)"
	}
	if e.Detail != "" {
		return fmt.Sprintf("job %s %s: %s", id, e.State, e.Detail)
	}
	return fmt.Sprintf("job %s %s", id, e.State)
}

// UnexpectedResultShapeError reports a terminal payload that matched none of the
// known result shapes. Payload holds the raw JSON for diagnostics.
type UnexpectedResultShapeError struct {
	Payload []byte
	Reason  string
}

func (e *UnexpectedResultShapeError) Error() string {
	msg := "unexpected result shape"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return fmt.Sprintf("%s (payload: %s)", msg, truncate(string(e.Payload), 200))
}

// IsRetryable reports whether err is a transport failure the poller may retry.
func IsRetryable(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
