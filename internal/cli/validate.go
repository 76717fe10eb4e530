package cli

import (
	"github.com/spf13/cobra"
)

// ValidationReport is the validate command's JSON payload.
type ValidationReport struct {
	Valid   bool     `json:"valid"`
	Name    string   `json:"name,omitempty"`
	Clauses []string `json:"clauses,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Validate a scenario without running it",
		Long: `Validate a scenario file: schema validation, strict decoding, predicate
compilation and fixture wiring. Nothing executes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0])
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
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

	report := ValidationReport{Valid: true, Name: plan.Scenario.Name}
	for _, clause := range plan.Contract.Contract.Clauses() {
		report.Clauses = append(report.Clauses, clause.Title())
	}

	if formatter.Format == "json" {
		return formatter.JSON(report)
	}
	formatter.Text("scenario %q is valid (%d clause(s))", report.Name, len(report.Clauses))
	for _, title := range report.Clauses {
		formatter.Text("  - %s", title)
	}
	return nil
}
