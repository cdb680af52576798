package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger and redacts secrets from every field before it is
// written.
//
// This organism composes:
//   - FileWriter molecule (rotating JSON log file via lumberjack)
//   - TeeCore molecule (console + file)
//   - SensitiveFilter atom (API key and bearer token redaction)
//
// Example:
//
//	logger, err := NewLogger(Options{Development: true, FilePath: "tryon.log"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("job submitted", zap.String("job_id", id))
type Logger struct {
	zap           *zap.Logger
	sugar         *zap.SugaredLogger
	isDevelopment bool
	logFilePath   string
}

// Options configures NewLogger.
type Options struct {
	// Development enables colored console output and debug level.
	Development bool

	// Level is the minimum level. Ignored when Development is set.
	Level zapcore.Level

	// FilePath is the rotating log file. Empty disables file output.
	FilePath string

	// File holds rotation settings; zero values use DefaultFileWriterConfig.
	File FileWriterConfig

	// Console receives console output. Defaults to os.Stderr.
	Console zapcore.WriteSyncer
}

// NewLogger creates a Logger from opts.
func NewLogger(opts Options) (*Logger, error) {
	level := opts.Level
	if opts.Development {
		level = zapcore.DebugLevel
	}

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}

	var file zapcore.WriteSyncer
	if opts.FilePath != "" {
		fileCfg := opts.File
		if fileCfg == (FileWriterConfig{}) {
			fileCfg = DefaultFileWriterConfig()
		}
		file = NewFileWriter(opts.FilePath, fileCfg)
		// lumberjack opens lazily; probe now so a bad path fails at startup.
		if _, err := file.Write(nil); err != nil {
			return nil, fmt.Errorf("logging: open log file %s: %w", opts.FilePath, err)
		}
	}

	zapLogger := zap.New(NewTeeCore(level, console, file, opts.Development),
		zap.AddCaller(),
		zap.AddCallerSkip(1), // skip this wrapper
	)

	return &Logger{
		zap:           zapLogger,
		sugar:         zapLogger.Sugar(),
		isDevelopment: opts.Development,
		logFilePath:   opts.FilePath,
	}, nil
}

// NewFromZap wraps an existing zap.Logger, typically one built with
// zaptest.NewLogger or an observer core in tests.
func NewFromZap(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{zap: z, sugar: z.Sugar()}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return NewFromZap(zap.NewNop())
}

// Sync flushes any buffered log entries. Safe on a nil Logger.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs a message at DebugLevel with optional structured fields.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

// Info logs a message at InfoLevel with optional structured fields.
//
//	logger.Info("job completed", zap.String("job_id", id), zap.Int("polls", 4))
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

// Warn logs a message at WarnLevel with optional structured fields.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

// Error logs a message at ErrorLevel with optional structured fields.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// Infow logs a message at InfoLevel with loosely-typed key-value pairs.
//
//	logger.Infow("config loaded", "endpoint_id", cfg.EndpointID, "mode", cfg.SubmitMode)
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, redactKeysAndValues(keysAndValues)...)
}

// Warnw logs a message at WarnLevel with loosely-typed key-value pairs.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, redactKeysAndValues(keysAndValues)...)
}

// Errorw logs a message at ErrorLevel with loosely-typed key-value pairs.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, redactKeysAndValues(keysAndValues)...)
}

// With creates a child logger that adds fields to every entry.
//
//	jobLog := logger.With(zap.String("correlation_id", cid))
func (l *Logger) With(fields ...zap.Field) *Logger {
	return l.derive(l.zap.With(redactFields(fields)...))
}

// Named adds a sub-logger name, e.g. "runpod" or "poller".
func (l *Logger) Named(name string) *Logger {
	return l.derive(l.zap.Named(name))
}

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// IsDevelopment returns true if the logger is configured for development mode.
func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

// LogFilePath returns the path to the log file, or "" when file output is off.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}

func (l *Logger) derive(z *zap.Logger) *Logger {
	return &Logger{
		zap:           z,
		sugar:         z.Sugar(),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// redactFields filters sensitive data from zap.Field values.
func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	result := make([]zap.Field, len(fields))
	for i, field := range fields {
		result[i] = redactField(field)
	}
	return result
}

func redactField(field zap.Field) zap.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}

	switch field.Type {
	case zapcore.StringType:
		if redacted := RedactSensitiveData(field.String); redacted != field.String {
			return zap.String(field.Key, redacted)
		}
	case zapcore.ErrorType:
		// Transport errors can echo response bodies and headers.
		if err, ok := field.Interface.(error); ok && err != nil {
			msg := err.Error()
			if redacted := RedactSensitiveData(msg); redacted != msg {
				return zap.String(field.Key, redacted)
			}
		}
	}

	return field
}

// redactKeysAndValues filters sensitive data from sugared key-value pairs.
func redactKeysAndValues(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues) == 0 {
		return keysAndValues
	}

	result := make([]interface{}, len(keysAndValues))
	copy(result, keysAndValues)

	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok {
			continue
		}
		if IsSensitiveField(key) {
			result[i+1] = RedactedPlaceholder
			continue
		}
		if value, ok := result[i+1].(string); ok {
			result[i+1] = RedactSensitiveData(value)
		}
	}

	return result
}
