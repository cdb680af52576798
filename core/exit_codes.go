package core

import (
	"context"
	"errors"
)

// Exit codes for the command line front end.
// Signal-based exits follow the Unix convention of 128 + signal number.
const (
	// ExitCodeSuccess indicates the result image was written (exit code 0)
	ExitCodeSuccess = 0

	// ExitCodeError indicates a generic failure (exit code 1)
	ExitCodeError = 1

	// ExitCodeConfig indicates bad input or configuration (exit code 2)
	ExitCodeConfig = 2

	// ExitCodeAuth indicates rejected or missing credentials (exit code 3)
	ExitCodeAuth = 3

	// ExitCodeTimeout indicates the job deadline expired client-side (exit code 4)
	ExitCodeTimeout = 4

	// ExitCodeSIGINT indicates the wait was interrupted (Ctrl+C)
	// Convention: 128 + 2 (SIGINT) = 130
	ExitCodeSIGINT = 130
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeAuth:
		return "authentication error"
	case ExitCodeTimeout:
		return "timeout"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	default:
		return "unknown"
	}
}

// ExitCodeFor maps an error from the job pipeline onto an exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var (
		configErr  *ConfigError
		authErr    *AuthError
		timeoutErr *TimeoutError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitCodeSIGINT
	case errors.As(err, &configErr):
		return ExitCodeConfig
	case errors.As(err, &authErr):
		return ExitCodeAuth
	case errors.As(err, &timeoutErr):
		return ExitCodeTimeout
	default:
		return ExitCodeError
	}
}
