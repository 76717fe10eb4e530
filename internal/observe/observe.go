// Package observe models a single data-collection attempt against an
// external system.
//
// An Observer is the capability the engine uses to re-read system state
// through a channel independent of the operation under test. Each call
// produces a fresh Observation snapshot; the engine never caches or diffs
// observations across calls. Collection failures are data, not errors: they
// populate Observation.Errors and leave verdict logic to the clause
// evaluator.
package observe

import (
	"context"
	"fmt"

	"github.com/avow-dev/avow/internal/jsonval"
)

// Observation is one snapshot of collected objects plus any collection
// errors. It is constructed once per attempt and never mutated afterwards;
// every retry produces a new Observation.
type Observation struct {
	// Objects are the collected JSON documents, in collection order.
	Objects []jsonval.Value

	// Errors are the collection failures encountered during this attempt.
	Errors []Error
}

// Error records one collection failure.
type Error struct {
	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Fatal marks failures that cannot succeed on retry (for example an
	// authentication rejection). A fatal error aborts a clause's retry
	// loop immediately instead of counting as a transient miss.
	Fatal bool
}

func (e Error) String() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// HasFatalError reports whether any collection error is fatal.
func (o *Observation) HasFatalError() bool {
	for _, err := range o.Errors {
		if err.Fatal {
			return true
		}
	}
	return false
}

// ErrorMessages renders the collection errors for traces.
func (o *Observation) ErrorMessages() []string {
	if len(o.Errors) == 0 {
		return nil
	}
	out := make([]string, len(o.Errors))
	for i, err := range o.Errors {
		out[i] = err.String()
	}
	return out
}

// Observer collects a fresh Observation on demand. Implementations perform
// the actual I/O (HTTP list calls, CLI invocations) and must never return a
// Go error: business-level misses are zero objects, transport failures are
// Observation.Errors entries.
//
// Observers may be called concurrently by independent runs and must not
// expose shared mutable state to callers.
type Observer interface {
	Observe(ctx context.Context) *Observation
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context) *Observation

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context) *Observation {
	return f(ctx)
}
