package core

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

func TestConfigErrorMessage(t *testing.T) {
	err := ErrMissingConfig("RUNPOD_ENDPOINT_ID")
	if !strings.Contains(err.Error(), "RUNPOD_ENDPOINT_ID") {
		t.Errorf("message %q does not name the variable", err.Error())
	}
	if !strings.Contains(err.Error(), "Set RUNPOD_ENDPOINT_ID") {
		t.Errorf("message %q does not include the action", err.Error())
	}

	plain := &ConfigError{Code: ErrCodeInvalidValue, Message: "bad"}
	if plain.Error() != "bad" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "bad")
	}
}

func TestIsConfigError(t *testing.T) {
	wrapped := fmt.Errorf("builder: %w", ErrMixedSources("auto", "local", "remote"))
	ce, ok := IsConfigError(wrapped)
	if !ok {
		t.Fatal("expected wrapped ConfigError to be found")
	}
	if ce.Code != ErrCodeMixedSources {
		t.Errorf("Code = %q, want %q", ce.Code, ErrCodeMixedSources)
	}

	if _, ok := IsConfigError(errors.New("other")); ok {
		t.Error("plain error reported as ConfigError")
	}
	if GetErrorCode(errors.New("other")) != "" {
		t.Error("plain error has an error code")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", &TransportError{Op: "status", Err: net.ErrClosed}, true},
		{"wrapped transport", fmt.Errorf("poll: %w", &TransportError{Op: "status", StatusCode: 503}), true},
		{"auth", &AuthError{StatusCode: 403}, false},
		{"config", ErrMissingConfig("X"), false},
		{"job", &JobError{State: "FAILED"}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Op: "submit", Err: net.ErrClosed}
	if !errors.Is(err, net.ErrClosed) {
		t.Error("TransportError does not unwrap to its cause")
	}
	if !strings.HasPrefix(err.Error(), "submit: ") {
		t.Errorf("Error() = %q, want submit prefix", err.Error())
	}
}

func TestAuthErrorMessage(t *testing.T) {
	if got := (&AuthError{}).Error(); !strings.Contains(got, "empty") {
		t.Errorf("local auth error = %q, want mention of empty key", got)
	}
	if got := (&AuthError{StatusCode: 401, Body: "unauthorized"}).Error(); !strings.Contains(got, "401") {
		t.Errorf("remote auth error = %q, want status code", got)
	}
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{JobID: "job-1", Elapsed: 301 * time.Second, Deadline: 300 * time.Second, LastState: "IN_PROGRESS"}
	msg := err.Error()
	for _, want := range []string{"job-1", "IN_PROGRESS", "5m0s", "still be running"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestUnexpectedResultShapeTruncatesPayload(t *testing.T) {
	payload := []byte(`{"blob":"` + strings.Repeat("x", 1000) + `"}`)
	err := &UnexpectedResultShapeError{Payload: payload, Reason: "no image field"}
	msg := err.Error()
	if len(msg) > 300 {
		t.Errorf("message length %d, want truncated", len(msg))
	}
	if !strings.Contains(msg, "no image field") {
		t.Errorf("message %q missing reason", msg)
	}
}

func TestJobErrorMessage(t *testing.T) {
	if got := (&JobError{State: "REJECTED", Detail: "bad input"}).Error(); got != "job (no id) REJECTED: bad input" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&JobError{JobID: "j", State: "CANCELLED"}).Error(); got != "job j CANCELLED" {
		t.Errorf("Error() = %q", got)
	}
}
