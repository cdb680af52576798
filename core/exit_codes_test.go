package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeConstants(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		value int
	}{
		{"ExitCodeSuccess", ExitCodeSuccess, 0},
		{"ExitCodeError", ExitCodeError, 1},
		{"ExitCodeConfig", ExitCodeConfig, 2},
		{"ExitCodeAuth", ExitCodeAuth, 3},
		{"ExitCodeTimeout", ExitCodeTimeout, 4},
		{"ExitCodeSIGINT", ExitCodeSIGINT, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.value {
				t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.value)
			}
		})
	}
}

func TestExitCodeName(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{ExitCodeSuccess, "success"},
		{ExitCodeError, "error"},
		{ExitCodeConfig, "configuration error"},
		{ExitCodeAuth, "authentication error"},
		{ExitCodeTimeout, "timeout"},
		{ExitCodeSIGINT, "interrupted (SIGINT)"},
		{99, "unknown"},
	}

	for _, tt := range tests {
		if got := ExitCodeName(tt.code); got != tt.want {
			t.Errorf("ExitCodeName(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"generic", errors.New("boom"), ExitCodeError},
		{"config", ErrMissingConfig("RUNPOD_API_KEY"), ExitCodeConfig},
		{"wrapped config", fmt.Errorf("build: %w", ErrInvalidValue("steps", 0, "must be greater than 0")), ExitCodeConfig},
		{"auth", &AuthError{StatusCode: 401}, ExitCodeAuth},
		{"timeout", fmt.Errorf("wait: %w", &TimeoutError{JobID: "j1"}), ExitCodeTimeout},
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), ExitCodeSIGINT},
		{"job failed", &JobError{JobID: "j1", State: "FAILED"}, ExitCodeError},
		{"transport", &TransportError{Op: "status", StatusCode: 502}, ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
