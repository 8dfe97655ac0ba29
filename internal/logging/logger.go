package logging

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "FORMRELAY_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks FORMRELAY_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built

	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

// SetLogger replaces the global logger. Tests use this with zaptest/observer cores.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Silent until initialized so CLI output stays clean
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogTransition logs a form moving between UI states
func LogTransition(formID, from, to string, generation uint64) {
	Debug("Form state transition",
		zap.String("form", formID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Uint64("generation", generation),
	)
}

// LogSubmission logs the start of a submission attempt. Field values are
// never logged, only their names.
func LogSubmission(formID, action string, values url.Values, generation uint64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	Info("Submitting form",
		zap.String("form", formID),
		zap.String("action", action),
		zap.Strings("fields", names),
		zap.Uint64("generation", generation),
	)
}

// LogSubmissionResult logs how an attempt resolved
func LogSubmissionResult(formID string, generation uint64, status int, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("form", formID),
		zap.Uint64("generation", generation),
		zap.Int("status_code", status),
		zap.Duration("duration", duration),
	}
	if err != nil {
		Error("Form submission error", append(fields, zap.Error(err))...)
		return
	}
	Info("Form submitted", fields...)
}

// LogHTTPRequest logs a request handled by the relay server
func LogHTTPRequest(remoteAddr, method, path string, status int, size int, duration time.Duration) {
	Info("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", status),
		zap.Int("bytes", size),
		zap.Duration("duration", duration),
	)
}

// LogConnection logs a websocket subscriber event
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
