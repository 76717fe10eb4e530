package contract

import (
	"errors"
	"fmt"
)

// BuildErrorCode classifies clause and contract construction failures.
type BuildErrorCode string

const (
	ErrCodeMissingObserver  BuildErrorCode = "MISSING_OBSERVER"
	ErrCodeMissingPredicate BuildErrorCode = "MISSING_PREDICATE"
	ErrCodeObserverRebound  BuildErrorCode = "OBSERVER_REBOUND"
)

// BuildError reports an invalid clause specification at Build time.
type BuildError struct {
	Code    BuildErrorCode
	Clause  string
	Message string
}

func (e *BuildError) Error() string {
	if e.Clause != "" {
		return fmt.Sprintf("contract: clause %q: %s", e.Clause, e.Message)
	}
	return fmt.Sprintf("contract: %s", e.Message)
}

// IsBuildError reports whether err is a BuildError and returns it.
func IsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
