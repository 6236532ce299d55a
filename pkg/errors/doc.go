// Package errors provides structured error types for better observability
// and programmatic error handling across the application.
//
// Example usage:
//
//	err := errors.NewWithContext(
//	    errors.ErrCodeInvalidConfig,
//	    "blocked threshold must be positive",
//	    map[string]any{
//	        "threshold": threshold.String(),
//	    },
//	)
//
//	if errors.HasCode(err, errors.ErrCodeInvalidConfig) {
//	    // refuse to start
//	}
package errors
