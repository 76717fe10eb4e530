package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avow-dev/avow/internal/agent"
	"github.com/avow-dev/avow/internal/clock"
	"github.com/avow-dev/avow/internal/contract"
	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/observe"
	"github.com/avow-dev/avow/internal/runner"
	"github.com/avow-dev/avow/internal/testutil"
)

// Plan is a scenario compiled into runnable form: the contract, the
// scripted fixtures backing it, and the runner configuration. Compile is
// where every declarative mistake surfaces; a Plan always runs.
type Plan struct {
	Scenario  *Scenario
	Contract  runner.OperationContract
	Runner    runner.Runner
	Observers map[string]*testutil.ScriptedObserver
}

// Compile turns a loaded scenario into a Plan.
func Compile(s *Scenario) (*Plan, error) {
	opTimeout, err := parseDuration("operation_timeout", s.OperationTimeout)
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("poll_interval", s.PollInterval)
	if err != nil {
		return nil, err
	}

	policy := runner.Policy(s.Policy)
	if s.Policy == "" {
		policy = runner.PolicyRequireBoth
	}
	if !policy.Valid() {
		return nil, &ScenarioError{
			Code:    ErrCodeBadPolicy,
			Message: fmt.Sprintf("unknown policy %q", s.Policy),
		}
	}

	fixtureAgent, err := compileAgent(s.Operation)
	if err != nil {
		return nil, err
	}

	observers := make(map[string]*testutil.ScriptedObserver, len(s.Observers))
	for name, fixtures := range s.Observers {
		observer, err := compileObserver(name, fixtures)
		if err != nil {
			return nil, err
		}
		observers[name] = observer
	}

	c, err := compileContract(s.Clauses, observers)
	if err != nil {
		return nil, err
	}

	title := s.Title
	if title == "" {
		title = s.Name
	}

	return &Plan{
		Scenario: s,
		Contract: runner.OperationContract{
			Operation: agent.Operation{Title: title, Agent: fixtureAgent},
			Contract:  c,
		},
		Runner: runner.Runner{
			PollInterval:     pollInterval,
			OperationTimeout: opTimeout,
			Policy:           policy,
		},
		Observers: observers,
	}, nil
}

// Run executes the plan on the given clock. A virtual clock makes scenario
// runs instantaneous and their traces deterministic.
func (p *Plan) Run(ctx context.Context, clk clock.Clock, logger *slog.Logger) *runner.TestResult {
	r := p.Runner
	r.Clock = clk
	r.Logger = logger
	return r.Run(ctx, p.Contract)
}

func compileAgent(script OperationScript) (*testutil.ScriptedAgent, error) {
	initial := agent.StateUpdate{State: agent.StateRunning}
	if script.Initial != "" {
		state, err := parseState(script.Initial)
		if err != nil {
			return nil, err
		}
		initial.State = state
	}

	steps := make([]agent.StateUpdate, 0, len(script.Script))
	for i, step := range script.Script {
		state, err := parseState(step.State)
		if err != nil {
			return nil, err
		}
		update := agent.StateUpdate{State: state, Err: step.Error}
		if step.Detail != nil {
			detail, err := jsonval.FromAny(step.Detail)
			if err != nil {
				return nil, &ScenarioError{
					Code:    ErrCodeBadFixture,
					Message: fmt.Sprintf("operation script step %d detail: %v", i, err),
				}
			}
			update.Detail = detail
		}
		steps = append(steps, update)
	}
	return testutil.NewScriptedAgent(initial, steps...), nil
}

func compileObserver(name string, fixtures []ObservationFixture) (*testutil.ScriptedObserver, error) {
	if len(fixtures) == 0 {
		return nil, &ScenarioError{
			Code:    ErrCodeBadFixture,
			Message: fmt.Sprintf("observer %q has no observations", name),
		}
	}

	steps := make([]*observe.Observation, 0, len(fixtures))
	for i, fixture := range fixtures {
		obs := &observe.Observation{}
		for _, raw := range fixture.Objects {
			val, err := jsonval.FromAny(raw)
			if err != nil {
				return nil, &ScenarioError{
					Code:    ErrCodeBadFixture,
					Message: fmt.Sprintf("observer %q observation %d: %v", name, i, err),
				}
			}
			obs.Objects = append(obs.Objects, val)
		}
		for _, e := range fixture.Errors {
			obs.Errors = append(obs.Errors, observe.Error{Message: e.Message, Fatal: e.Fatal})
		}
		steps = append(steps, obs)
	}
	return testutil.NewScriptedObserver(steps...), nil
}

func compileContract(specs []ClauseSpec, observers map[string]*testutil.ScriptedObserver) (*contract.Contract, error) {
	builder := contract.NewBuilder()
	for _, spec := range specs {
		observer, ok := observers[spec.Observer]
		if !ok {
			return nil, &ScenarioError{
				Code:    ErrCodeUnknownObserver,
				Message: fmt.Sprintf("clause %q references unknown observer %q", spec.Title, spec.Observer),
			}
		}

		if spec.Predicate == nil {
			return nil, &ScenarioError{
				Code:    ErrCodeBadPredicate,
				Message: fmt.Sprintf("clause %q has no predicate", spec.Title),
			}
		}
		predicate, err := spec.Predicate.Compile()
		if err != nil {
			return nil, err
		}

		retryWindow, err := parseDuration("retry_window", spec.RetryWindow)
		if err != nil {
			return nil, err
		}
		pollInterval, err := parseDuration("poll_interval", spec.PollInterval)
		if err != nil {
			return nil, err
		}

		cb := builder.NewClause(spec.Title).
			Observer(observer).
			Predicate(predicate).
			RetryWindow(retryWindow).
			PollInterval(pollInterval)
		if spec.Optional {
			cb.Optional()
		}
		if spec.Match == string(contract.MatchObservation) {
			cb.MatchWholeObservation()
		}
	}
	return builder.Build()
}

func parseState(s string) (agent.State, error) {
	state := agent.State(s)
	switch state {
	case agent.StateNotStarted, agent.StateRunning, agent.StateSucceeded,
		agent.StateFailed, agent.StateTerminalError, agent.StateTimedOut:
		return state, nil
	}
	return "", &ScenarioError{
		Code:    ErrCodeUnknownState,
		Message: fmt.Sprintf("unknown operation state %q", s),
	}
}
