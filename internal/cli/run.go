package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avow-dev/avow/internal/clock"
	"github.com/avow-dev/avow/internal/harness"
	"github.com/avow-dev/avow/internal/journal"
	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/runner"
	"github.com/avow-dev/avow/internal/testutil"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var journalPath string
	var wallClock bool

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a verification scenario",
		Long: `Run a verification scenario end to end: execute the scripted operation,
wait for it to conclude, verify every contract clause, and report the
combined verdict.

Scenario fixtures are scripted, so runs use a virtual clock by default
and complete instantly; --wall-clock opts into real sleeps.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, cmd, args[0], journalPath, wallClock)
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "record the run into a journal database")
	cmd.Flags().BoolVar(&wallClock, "wall-clock", false, "use the system clock instead of a virtual one")

	return cmd
}

func runRun(opts *RootOptions, cmd *cobra.Command, path, journalPath string, wallClock bool) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	plan, err := loadPlan(formatter, path)
	if err != nil {
		return err
	}

	r := plan.Runner
	r.Logger = opts.NewLogger()
	if wallClock {
		r.Clock = clock.System{}
	} else {
		r.Clock = testutil.NewVirtualClock()
	}

	if journalPath != "" {
		store, err := journal.Open(journalPath)
		if err != nil {
			formatter.Error("JOURNAL", err.Error())
			return &ExitError{Code: ExitCommandError, Message: "opening journal", Err: err}
		}
		defer store.Close()
		r.Journal = store
	}

	result := r.Run(cmd.Context(), plan.Contract)

	if err := renderResult(formatter, result); err != nil {
		return &ExitError{Code: ExitCommandError, Message: "rendering result", Err: err}
	}
	if !result.Passed {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("run %s did not pass", result.RunID)}
	}
	return nil
}

// loadPlan loads and compiles a scenario, reporting failures through the
// formatter.
func loadPlan(formatter *OutputFormatter, path string) (*harness.Plan, error) {
	scenario, err := harness.LoadFile(path)
	if err != nil {
		reportScenarioError(formatter, err)
		return nil, &ExitError{Code: ExitCommandError, Message: "loading scenario", Err: err}
	}
	formatter.VerboseLog("loaded scenario %q", scenario.Name)

	plan, err := harness.Compile(scenario)
	if err != nil {
		reportScenarioError(formatter, err)
		return nil, &ExitError{Code: ExitCommandError, Message: "compiling scenario", Err: err}
	}
	formatter.VerboseLog("compiled %d clause(s)", len(plan.Contract.Contract.Clauses()))
	return plan, nil
}

func reportScenarioError(formatter *OutputFormatter, err error) {
	if se, ok := harness.IsScenarioError(err); ok {
		formatter.Error(string(se.Code), se.Message)
		return
	}
	formatter.Error("SCENARIO", err.Error())
}

// renderResult prints the run report.
func renderResult(formatter *OutputFormatter, result *runner.TestResult) error {
	if formatter.Format == "json" {
		trace, err := jsonval.MarshalCanonical(result.Snapshot())
		if err != nil {
			return err
		}
		return formatter.RawJSON(trace)
	}

	formatter.Text("run %s: %s", result.RunID, result.Title)
	formatter.Text("operation: %s%s", result.OperationState, suffixErr(result.OperationErr))
	for _, cr := range result.ContractResult.ClauseResults {
		marker := "ok  "
		if !cr.Satisfied() {
			marker = "MISS"
		}
		optional := ""
		if cr.Optional {
			optional = " (optional)"
		}
		formatter.Text("  %s %s%s: %s after %d attempt(s) in %s",
			marker, cr.Title, optional, cr.Outcome, cr.Attempts, cr.Elapsed)
		if !cr.Satisfied() && cr.Result != nil {
			formatter.Text("       %s", cr.Result.Comment)
		}
		for _, msg := range cr.ObservationErrors {
			formatter.Text("       observation error: %s", msg)
		}
	}
	verdict := "PASS"
	if !result.Passed {
		verdict = "FAIL"
	}
	formatter.Text("%s (%s policy, %s)", verdict, result.Policy, result.Elapsed)
	return nil
}

func suffixErr(msg string) string {
	if msg == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", msg)
}
