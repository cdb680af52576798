package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Log level aliases so callers need not import zapcore.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// ParseLogLevel reads a level from the named environment variable,
// returning defaultLevel when it is empty or unrecognized.
//
//	level := ParseLogLevel("LOG_LEVEL", zapcore.InfoLevel)
func ParseLogLevel(envVarName string, defaultLevel zapcore.Level) zapcore.Level {
	return ParseLogLevelString(os.Getenv(envVarName), defaultLevel)
}

// ParseLogLevelString parses debug, info, warn/warning or error, case-insensitively.
func ParseLogLevelString(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return defaultLevel
	}
}
