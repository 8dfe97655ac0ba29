// Package logging provides structured logging for formrelay.
//
// This package wraps a zap logger with convenience functions for the patterns
// used throughout the relay: state transitions, submission attempts and HTTP
// requests handled by the relay server.
//
// # Log Levels
//
//   - Debug: state transitions, timer firings, websocket frames
//   - Info: submissions, HTTP requests, subscriber connects
//   - Warn: stale responses, dropped subscribers
//   - Error: failed submissions, server failures
//
// # Configuration
//
// Logging is silent by default so CLI output stays clean. Enable it with the
// --log-level flag or the FORMRELAY_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Output goes to stderr in console format so it never mixes with documents
// written to stdout.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
