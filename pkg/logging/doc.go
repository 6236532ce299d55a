// Package logging provides structured logging utilities for crashcore components.
//
// # Overview
//
// This package wraps the standard library slog package with crashcore defaults so
// that the capturer, the detector, the debug server and the CLI all emit the same
// JSON shape. The log level comes from the LOG_LEVEL environment variable unless
// set explicitly, and every record carries the module and version attributes.
//
// # Log Levels
//
// Supported log levels (case-insensitive):
//   - DEBUG: Detailed diagnostic information with source location
//   - INFO: General informational messages (default)
//   - WARN/WARNING: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures requiring attention
//
// # Usage
//
// Setting the default logger early in main():
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("crashcored", version)
//	    slog.Info("detector started", "threshold", threshold)
//	}
//
// Creating a dedicated logger:
//
//	logger := logging.NewStructuredLogger("crashcore", "v1.0.0", "debug")
//	logger.Warn("thread blocked", "detector", "main-loop")
//
// Converting to a standard library logger (e.g. for http.Server.ErrorLog):
//
//	stdLogger := logging.NewLogLogger(slog.LevelWarn, false)
//
// # Output Format
//
// All logs are written to stderr in JSON format:
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "WARN",
//	    "msg": "thread blocked",
//	    "module": "crashcored",
//	    "version": "v1.0.0",
//	    "detector": "main-loop"
//	}
//
// Debug logs include source location.
package logging
