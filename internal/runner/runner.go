// Package runner drives one verification run end to end: execute an
// operation, wait for it to reach a terminal state, then verify the
// contract against the live system.
//
// The contract is always verified, even when the operation fails. A failed
// operation usually has observable effects worth asserting on (error
// payloads, absence of side effects), and the policy decides how the two
// verdicts combine into a pass or fail.
package runner

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avow-dev/avow/internal/agent"
	"github.com/avow-dev/avow/internal/clock"
	"github.com/avow-dev/avow/internal/contract"
	"github.com/avow-dev/avow/internal/jsonval"
)

// Policy decides how the operation verdict and the contract verdict combine.
type Policy string

const (
	// PolicyRequireBoth passes when the operation succeeded and the
	// contract is verified. The default.
	PolicyRequireBoth Policy = "require_both"

	// PolicyContractOnly passes on the contract verdict alone; the
	// operation outcome is recorded but not gated on.
	PolicyContractOnly Policy = "contract_only"

	// PolicyExpectFailure passes when the operation concluded in a
	// non-success terminal state and the contract is verified. For tests
	// that deliberately provoke failures and assert on their effects.
	PolicyExpectFailure Policy = "expect_failure"
)

// Valid reports whether p names a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyRequireBoth, PolicyContractOnly, PolicyExpectFailure:
		return true
	}
	return false
}

// OperationContract pairs an operation with the contract on its effects.
type OperationContract struct {
	Operation agent.Operation
	Contract  *contract.Contract

	// Cleanup, if set, runs after verification with the finished result,
	// whether the run passed or not. Tear down test resources here.
	Cleanup func(ctx context.Context, result *TestResult)
}

// Recorder persists finished runs. Implemented by journal.Store.
type Recorder interface {
	Record(ctx context.Context, result *TestResult) error
}

// TestResult is the complete trace of one run: the operation's terminal
// status, every clause's justification tree, and the combined verdict.
type TestResult struct {
	RunID           string
	Title           string
	Policy          Policy
	OperationState  agent.State
	OperationDetail jsonval.Value
	OperationErr    string
	ContractResult  *contract.Result
	Passed          bool
	Started         time.Time
	Elapsed         time.Duration
}

// Snapshot renders the result for reports and journals.
func (r *TestResult) Snapshot() jsonval.Value {
	obj := jsonval.Obj{
		"run_id":  jsonval.Str(r.RunID),
		"title":   jsonval.Str(r.Title),
		"policy":  jsonval.Str(string(r.Policy)),
		"passed":  jsonval.Bool(r.Passed),
		"started": jsonval.Str(r.Started.UTC().Format(time.RFC3339)),
		"elapsed": jsonval.Str(r.Elapsed.String()),
		"operation": jsonval.Obj{
			"state": jsonval.Str(string(r.OperationState)),
		},
	}
	op := obj["operation"].(jsonval.Obj)
	if r.OperationDetail != nil {
		op["detail"] = r.OperationDetail
	}
	if r.OperationErr != "" {
		op["error"] = jsonval.Str(r.OperationErr)
	}
	if r.ContractResult != nil {
		obj["contract"] = r.ContractResult.Snapshot()
	}
	return obj
}

// Runner holds run-independent configuration. The zero value works: system
// clock, one second operation polling, RequireBoth policy, no journal.
//
// Runners are safe for concurrent Run calls; each run owns its status and
// observations.
type Runner struct {
	// PollInterval between operation status refreshes. Defaults to 1s.
	PollInterval time.Duration

	// OperationTimeout bounds the wait for the operation to become
	// terminal. Zero polls once; negative waits unboundedly.
	OperationTimeout time.Duration

	// Policy combining operation and contract verdicts.
	// Defaults to PolicyRequireBoth.
	Policy Policy

	Clock   clock.Clock
	Logger  *slog.Logger
	Journal Recorder
}

// Run executes the operation, waits for a terminal status, verifies the
// contract, and combines the verdicts per the policy.
//
// Run never returns an error: every failure mode, from a dead endpoint to
// an unverified clause, is captured in the TestResult so the caller always
// gets a full trace.
func (r *Runner) Run(ctx context.Context, oc OperationContract) *TestResult {
	clk := r.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	policy := r.Policy
	if policy == "" {
		policy = PolicyRequireBoth
	}
	pollInterval := r.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	result := &TestResult{
		RunID:   uuid.Must(uuid.NewV7()).String(),
		Title:   oc.Operation.Title,
		Policy:  policy,
		Started: clk.Now(),
	}
	logger = logger.With("run_id", result.RunID, "operation", oc.Operation.Title)

	logger.Info("executing operation")
	status := oc.Operation.Execute(ctx)
	finalState := agent.WaitForTerminal(ctx, clk, status, pollInterval, r.OperationTimeout)

	result.OperationState = finalState
	result.OperationDetail = status.Detail()
	result.OperationErr = status.Err()
	logger.Info("operation concluded", "state", finalState, "error", result.OperationErr)

	// Verify regardless of the operation outcome. Failed operations still
	// have observable effects the contract may be about.
	if oc.Contract != nil {
		result.ContractResult = oc.Contract.Verify(ctx, clk, logger)
	} else {
		result.ContractResult = &contract.Result{Verified: true}
	}

	result.Passed = verdict(policy, finalState, result.ContractResult.Verified)
	result.Elapsed = clk.Now().Sub(result.Started)
	logger.Info("run finished",
		"passed", result.Passed,
		"verified", result.ContractResult.Verified,
		"elapsed", result.Elapsed)

	if oc.Cleanup != nil {
		oc.Cleanup(ctx, result)
	}

	if r.Journal != nil {
		if err := r.Journal.Record(ctx, result); err != nil {
			logger.Error("recording run failed", "error", err)
		}
	}
	return result
}

func verdict(policy Policy, state agent.State, verified bool) bool {
	switch policy {
	case PolicyContractOnly:
		return verified
	case PolicyExpectFailure:
		return state.Terminal() && !state.Success() && verified
	default:
		return state.Success() && verified
	}
}
