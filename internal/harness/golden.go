package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/runner"
	"github.com/avow-dev/avow/internal/testutil"
)

// redactedRunID replaces the random run ID so traces compare byte-for-byte.
const redactedRunID = "00000000-0000-0000-0000-000000000000"

// GoldenTrace renders a result as the canonical JSON compared against
// golden files. Run IDs are redacted; everything else is deterministic
// when the run used a virtual clock.
func GoldenTrace(result *runner.TestResult) ([]byte, error) {
	snap, ok := result.Snapshot().(jsonval.Obj)
	if !ok {
		return nil, &ScenarioError{Code: ErrCodeBadFixture, Message: "trace snapshot is not an object"}
	}
	snap["run_id"] = jsonval.Str(redactedRunID)
	return jsonval.MarshalCanonical(snap)
}

// RunWithGolden compiles and runs a scenario on a virtual clock, then
// compares its trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*runner.TestResult, error) {
	t.Helper()

	plan, err := Compile(scenario)
	if err != nil {
		return nil, err
	}

	result := plan.Run(context.Background(), testutil.NewVirtualClock(), nil)
	trace, err := GoldenTrace(result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, trace)
	return result, nil
}
