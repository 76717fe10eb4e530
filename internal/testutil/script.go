package testutil

import (
	"context"
	"sync"

	"github.com/avow-dev/avow/internal/agent"
	"github.com/avow-dev/avow/internal/observe"
)

// ScriptedObserver replays a fixed sequence of observations, one per
// Observe call. Once the script is exhausted, the final observation repeats
// for every further call, matching an external system that has converged.
//
// Thread-safety: safe for concurrent use.
type ScriptedObserver struct {
	mu    sync.Mutex
	steps []*observe.Observation
	calls int
}

// NewScriptedObserver creates an observer replaying the given snapshots.
// At least one step is required.
func NewScriptedObserver(steps ...*observe.Observation) *ScriptedObserver {
	if len(steps) == 0 {
		panic("testutil: ScriptedObserver needs at least one step")
	}
	return &ScriptedObserver{steps: steps}
}

// Observe implements observe.Observer.
func (o *ScriptedObserver) Observe(ctx context.Context) *observe.Observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	idx := min(o.calls, len(o.steps)-1)
	o.calls++
	return o.steps[idx]
}

// Calls returns how many observations have been requested.
func (o *ScriptedObserver) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// ScriptedUpdater replays a fixed sequence of status updates, one per
// Update call. Once exhausted, the final update repeats; scripts normally
// end in a terminal state.
type ScriptedUpdater struct {
	mu    sync.Mutex
	steps []agent.StateUpdate
	errs  []error
	calls int
}

// NewScriptedUpdater creates an updater replaying the given updates.
func NewScriptedUpdater(steps ...agent.StateUpdate) *ScriptedUpdater {
	if len(steps) == 0 {
		panic("testutil: ScriptedUpdater needs at least one step")
	}
	return &ScriptedUpdater{steps: steps, errs: make([]error, len(steps))}
}

// FailNext makes call number n (0-based) return err instead of its update,
// simulating a transient status-check failure.
func (u *ScriptedUpdater) FailNext(n int, err error) *ScriptedUpdater {
	u.mu.Lock()
	defer u.mu.Unlock()
	for len(u.errs) <= n {
		u.errs = append(u.errs, nil)
		u.steps = append(u.steps, u.steps[len(u.steps)-1])
	}
	u.errs[n] = err
	return u
}

// Update implements agent.Updater.
func (u *ScriptedUpdater) Update(ctx context.Context) (agent.StateUpdate, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	idx := min(u.calls, len(u.steps)-1)
	u.calls++
	if u.errs[idx] != nil {
		return agent.StateUpdate{}, u.errs[idx]
	}
	return u.steps[idx], nil
}

// Calls returns how many updates have been requested.
func (u *ScriptedUpdater) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// ScriptedAgent submits operations whose status follows a scripted update
// sequence. Each Execute returns a fresh Status so concurrent runs never
// share state.
type ScriptedAgent struct {
	mu       sync.Mutex
	initial  agent.StateUpdate
	script   []agent.StateUpdate
	executed []string
}

// NewScriptedAgent creates an agent. initial is the submission response;
// script is replayed by the status's updater on each refresh.
func NewScriptedAgent(initial agent.StateUpdate, script ...agent.StateUpdate) *ScriptedAgent {
	return &ScriptedAgent{initial: initial, script: script}
}

// Execute implements agent.Agent.
func (a *ScriptedAgent) Execute(ctx context.Context, op agent.Operation) *agent.Status {
	a.mu.Lock()
	a.executed = append(a.executed, op.Title)
	a.mu.Unlock()

	if len(a.script) == 0 {
		return agent.NewStatus(a.initial, nil)
	}
	return agent.NewStatus(a.initial, NewScriptedUpdater(a.script...))
}

// Executed returns the titles of operations submitted so far.
func (a *ScriptedAgent) Executed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.executed))
	copy(out, a.executed)
	return out
}
