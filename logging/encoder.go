package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// JSON keys used in file output.
const (
	FieldTimestamp  = "timestamp"
	FieldLevel      = "level"
	FieldSource     = "source"
	FieldMessage    = "message"
	FieldStacktrace = "stacktrace"
	FieldCaller     = "caller"
)

// NewEncoderConfig returns the JSON encoder configuration used for the log
// file and for non-development console output.
func NewEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        FieldTimestamp,
		LevelKey:       FieldLevel,
		NameKey:        FieldSource,
		CallerKey:      FieldCaller,
		MessageKey:     FieldMessage,
		StacktraceKey:  FieldStacktrace,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// NewConsoleEncoderConfig returns a colored, human-readable configuration for
// development mode.
func NewConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := NewEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("15:04:05.000"))
	}
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

// NewTeeCore combines a console core and a file core.
// Outside development mode the console core only receives warnings and
// errors. fileWriter may be nil to log to the console only.
func NewTeeCore(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	consoleLevel := level
	consoleEncoder := zapcore.NewJSONEncoder(NewEncoderConfig())
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else if consoleLevel < zapcore.WarnLevel {
		consoleLevel = zapcore.WarnLevel
	}

	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, consoleLevel)
	if fileWriter == nil {
		return consoleCore
	}

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)
	return zapcore.NewTee(consoleCore, fileCore)
}
