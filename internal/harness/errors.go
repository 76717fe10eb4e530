package harness

import (
	"errors"
	"fmt"
)

// ScenarioErrorCode classifies scenario loading and compilation failures.
type ScenarioErrorCode string

const (
	ErrCodeNotFound         ScenarioErrorCode = "NOT_FOUND"
	ErrCodeParseFailed      ScenarioErrorCode = "PARSE_FAILED"
	ErrCodeSchemaBroken     ScenarioErrorCode = "SCHEMA_BROKEN"
	ErrCodeSchemaViolation  ScenarioErrorCode = "SCHEMA_VIOLATION"
	ErrCodeBadDuration      ScenarioErrorCode = "BAD_DURATION"
	ErrCodeBadPredicate     ScenarioErrorCode = "BAD_PREDICATE"
	ErrCodeUnknownObserver  ScenarioErrorCode = "UNKNOWN_OBSERVER"
	ErrCodeUnknownState     ScenarioErrorCode = "UNKNOWN_STATE"
	ErrCodeBadPolicy        ScenarioErrorCode = "BAD_POLICY"
	ErrCodeBadFixture       ScenarioErrorCode = "BAD_FIXTURE"
)

// ScenarioError reports an invalid scenario at load or compile time.
// Runtime verification never raises it; bad scenarios fail before any
// operation executes.
type ScenarioError struct {
	Code    ScenarioErrorCode
	Message string
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario: %s: %s", e.Code, e.Message)
}

// IsScenarioError reports whether err is a ScenarioError and returns it.
func IsScenarioError(err error) (*ScenarioError, bool) {
	var se *ScenarioError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
