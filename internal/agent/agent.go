package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/avow-dev/avow/internal/clock"
)

// Operation is a first-class, stateless description of a service call to be
// executed asynchronously. Descriptors are re-submittable: executing one
// twice issues the call twice.
type Operation struct {
	// Title names the operation for reporting.
	Title string

	// Agent executes the operation. Must be bound before execution.
	Agent Agent
}

// Execute submits the operation through its bound agent.
// An unbound agent is a configuration error surfaced as a TERMINAL_ERROR
// status rather than a panic, so a misconfigured test still produces a
// reportable trace.
func (op Operation) Execute(ctx context.Context) *Status {
	if op.Agent == nil {
		return NewErrorStatus(fmt.Sprintf("operation %q has no agent bound", op.Title))
	}
	return op.Agent.Execute(ctx, op)
}

// Agent submits operations to the external system under test.
//
// Execute must never let a transport failure escape as an error or panic:
// it returns a Status already in TERMINAL_ERROR carrying the failure.
// Agents must tolerate concurrent independent calls; each call returns its
// own Status with no caller-visible shared state.
type Agent interface {
	Execute(ctx context.Context, op Operation) *Status
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, op Operation) *Status

// Execute implements Agent.
func (f AgentFunc) Execute(ctx context.Context, op Operation) *Status {
	return f(ctx, op)
}

// WaitForTerminal polls the status until it is terminal or the timeout
// elapses, sleeping pollInterval between refreshes through the supplied
// clock.
//
// A timeout of zero performs exactly one refresh (a poll); a negative
// timeout waits indefinitely. When the timeout elapses, or the context is
// canceled mid-sleep, the status is forced to TIMED_OUT without further
// mutating the agent-observed fields. Returns the final state.
func WaitForTerminal(ctx context.Context, clk clock.Clock, status *Status, pollInterval, timeout time.Duration) State {
	start := clk.Now()
	deadline := start.Add(timeout)

	status.Refresh(ctx)
	for !status.State().Terminal() {
		if timeout == 0 {
			status.forceTimeout("operation still pending after a single poll")
			break
		}

		sleep := pollInterval
		if timeout > 0 {
			remaining := deadline.Sub(clk.Now())
			if remaining <= 0 {
				status.forceTimeout(fmt.Sprintf("operation not terminal after %s", timeout))
				break
			}
			sleep = min(sleep, remaining)
		}

		if err := clk.Sleep(ctx, sleep); err != nil {
			status.forceTimeout(fmt.Sprintf("wait aborted: %v", err))
			break
		}
		status.Refresh(ctx)
	}
	return status.State()
}
