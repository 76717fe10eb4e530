// Package agent defines the capability through which the verification
// engine talks to the system under test: executing operations and tracking
// their asynchronous status.
//
// The core owns the status state machine; system-specific protocol parsing
// lives entirely behind the Updater capability injected into Status. No
// external system detail leaks into the engine.
package agent

import (
	"context"
	"sync"

	"github.com/avow-dev/avow/internal/jsonval"
)

// State is the lifecycle state of an issued operation.
type State string

const (
	StateNotStarted    State = "NOT_STARTED"
	StateRunning       State = "RUNNING"
	StateSucceeded     State = "SUCCEEDED"
	StateFailed        State = "FAILED"
	StateTerminalError State = "TERMINAL_ERROR"
	StateTimedOut      State = "TIMED_OUT"
)

// Terminal reports whether the state is final. A terminal status never
// changes again.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTerminalError, StateTimedOut:
		return true
	}
	return false
}

// Success reports whether the state is the successful terminal outcome.
func (s State) Success() bool {
	return s == StateSucceeded
}

// StateUpdate is one status report from the external system, as translated
// by an Updater.
type StateUpdate struct {
	// State is the reported lifecycle state.
	State State

	// Detail is the raw status document reported by the external system,
	// retained for diagnostics. May be nil.
	Detail jsonval.Value

	// Err describes the failure for FAILED/TERMINAL_ERROR states.
	Err string
}

// Updater performs one status-check I/O call against the external system
// and translates the response into a StateUpdate.
//
// A returned error marks a transient check failure: the status is left
// unchanged and the driver retries on its next poll. Unrecoverable failures
// (the operation is gone, authentication is rejected) must instead be
// reported as a StateUpdate with State TERMINAL_ERROR so the state machine
// concludes.
type Updater interface {
	Update(ctx context.Context) (StateUpdate, error)
}

// UpdaterFunc adapts a function to the Updater interface.
type UpdaterFunc func(ctx context.Context) (StateUpdate, error)

// Update implements Updater.
func (f UpdaterFunc) Update(ctx context.Context) (StateUpdate, error) {
	return f(ctx)
}

// Status tracks one issued operation from submission to terminal outcome.
//
// The verification driver owns the status during polling and is the only
// caller of Refresh. Once the state enters a terminal value the status is
// immutable: further Refresh calls are no-ops, so a slow late poll can never
// clobber a concluded result.
//
// Thread-safety: accessors and Refresh are mutex-guarded so a Status may be
// read while a run is being reported on concurrently.
type Status struct {
	mu      sync.Mutex
	state   State
	detail  jsonval.Value
	err     string
	updater Updater
}

// NewStatus creates a status from the submission response.
// A nil updater is allowed when the initial state is already terminal
// (synchronous operations, transport failures at submission).
func NewStatus(initial StateUpdate, updater Updater) *Status {
	state := initial.State
	if state == "" {
		state = StateNotStarted
	}
	return &Status{
		state:   state,
		detail:  initial.Detail,
		err:     initial.Err,
		updater: updater,
	}
}

// NewErrorStatus creates a status already concluded in TERMINAL_ERROR.
// Used by agents whose submission transport failed: the error becomes data
// on the status, never an exception escaping to the driver.
func NewErrorStatus(errMsg string) *Status {
	return &Status{state: StateTerminalError, err: errMsg}
}

// State returns the current lifecycle state.
func (s *Status) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Detail returns the latest raw status document, or nil.
func (s *Status) Detail() jsonval.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

// Err returns the failure description, or "".
func (s *Status) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Refresh performs one status-check call and applies the reported update.
//
// Idempotent once terminal: a concluded status is never mutated again. A
// transient Updater error leaves the state unchanged; the driver's polling
// loop retries. A single refresh may jump directly from NOT_STARTED or
// RUNNING to any terminal state, depending on what the external system
// reports.
func (s *Status) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	if s.updater == nil {
		// Nothing can move this status forward; conclude it.
		s.state = StateTerminalError
		s.err = "status has no updater bound"
		return
	}

	update, err := s.updater.Update(ctx)
	if err != nil {
		// Transient check failure: leave state unchanged, driver retries.
		return
	}

	if update.State != "" {
		s.state = update.State
	}
	if update.Detail != nil {
		s.detail = update.Detail
	}
	if update.Err != "" {
		s.err = update.Err
	}
}

// forceTimeout concludes a still-running status as TIMED_OUT without
// touching the agent-observed detail and error fields. No-op once terminal.
func (s *Status) forceTimeout(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	s.state = StateTimedOut
	if s.err == "" {
		s.err = reason
	}
}

// Snapshot renders the status for traces and journals.
func (s *Status) Snapshot() jsonval.Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := jsonval.Obj{"state": jsonval.Str(string(s.state))}
	if s.detail != nil {
		obj["detail"] = s.detail
	}
	if s.err != "" {
		obj["error"] = jsonval.Str(s.err)
	}
	return obj
}
