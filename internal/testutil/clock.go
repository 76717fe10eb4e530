// Package testutil provides deterministic test doubles for the verification
// engine: a virtual clock and scripted observers and agents.
package testutil

import (
	"context"
	"sync"
	"time"
)

// VirtualClock is a Clock whose time only moves when Sleep is called.
//
// Sleep advances virtual time by the requested duration and returns
// immediately, so retry loops that would take minutes of wall time run
// instantly. Every sleep is recorded for assertions on polling behavior.
//
// Thread-safety: all methods are safe for concurrent use.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewVirtualClock creates a virtual clock starting at a fixed epoch.
//
// The epoch is arbitrary but constant so golden traces containing elapsed
// times are reproducible.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{
		now: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances virtual time by d without blocking.
// Honors context cancellation the same way a real sleep would.
func (c *VirtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.sleeps = append(c.sleeps, d)
	return nil
}

// Advance moves virtual time forward without recording a sleep.
// Used to simulate time passing outside the engine's own polling loops.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns a copy of every sleep duration requested so far.
func (c *VirtualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// SleepCount returns how many sleeps have been requested.
func (c *VirtualClock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}
