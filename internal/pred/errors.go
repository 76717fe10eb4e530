package pred

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed predicate or path detected at build time.
//
// Configuration errors are programmer errors: they are raised immediately
// when a predicate is constructed, never deferred to evaluation time.
// Evaluation itself never fails; mismatches are reported as Result misses.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeBadPath indicates a malformed path expression.
	ErrCodeBadPath ConfigErrorCode = "BAD_PATH"

	// ErrCodeBadPredicate indicates a malformed predicate specification.
	ErrCodeBadPredicate ConfigErrorCode = "BAD_PREDICATE"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
