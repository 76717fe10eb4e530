// Package clock abstracts time for the retry and polling loops.
//
// All sleeps in the verification engine go through a Clock so that tests can
// substitute a virtual clock and run time-dependent scenarios instantly and
// deterministically. Sleeps are context-cancellable: a run-level cancellation
// must abort an in-flight sleep promptly rather than waiting out the interval.
package clock

import (
	"context"
	"time"
)

// Clock provides the two time operations the engine needs.
//
// Implementations must be safe for concurrent use; independent verification
// runs may share one Clock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever comes first.
	// Returns ctx.Err() when the sleep was aborted by cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the wall-clock implementation used outside of tests.
type System struct{}

// NewSystem returns the wall-clock Clock.
func NewSystem() System {
	return System{}
}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock. The timer is stopped on cancellation so aborted
// sleeps do not leak.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
