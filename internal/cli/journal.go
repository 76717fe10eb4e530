package cli

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avow-dev/avow/internal/journal"
)

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	var journalPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded verification runs",
	}
	cmd.PersistentFlags().StringVar(&journalPath, "journal", "avow.db", "journal database path")

	cmd.AddCommand(newJournalListCommand(rootOpts, &journalPath))
	cmd.AddCommand(newJournalShowCommand(rootOpts, &journalPath))
	return cmd
}

// RunSummaryView is the list subcommand's JSON payload element.
type RunSummaryView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Policy    string `json:"policy"`
	Passed    bool   `json:"passed"`
	Operation string `json:"operation"`
	Started   string `json:"started"`
	Elapsed   string `json:"elapsed"`
}

func newJournalListCommand(rootOpts *RootOptions, journalPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List recorded runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			store, err := openJournal(formatter, *journalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				formatter.Error("JOURNAL", err.Error())
				return &ExitError{Code: ExitCommandError, Message: "listing runs", Err: err}
			}

			if formatter.Format == "json" {
				views := make([]RunSummaryView, 0, len(runs))
				for _, run := range runs {
					views = append(views, summaryView(run))
				}
				return formatter.JSON(views)
			}

			if len(runs) == 0 {
				formatter.Text("no recorded runs")
				return nil
			}
			for _, run := range runs {
				verdict := "PASS"
				if !run.Passed {
					verdict = "FAIL"
				}
				formatter.Text("%s  %s  %-4s  %s  %s",
					run.Started.UTC().Format(time.RFC3339), run.ID, verdict, run.OperationState, run.Title)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 = all)")
	return cmd
}

func newJournalShowCommand(rootOpts *RootOptions, journalPath *string) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one recorded run with its full trace",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			store, err := openJournal(formatter, *journalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, journal.ErrNotFound) {
				formatter.Error("NOT_FOUND", err.Error())
				return &ExitError{Code: ExitCommandError, Message: "run not found"}
			}
			if err != nil {
				formatter.Error("JOURNAL", err.Error())
				return &ExitError{Code: ExitCommandError, Message: "reading run", Err: err}
			}

			if formatter.Format == "json" {
				return formatter.RawJSON([]byte(record.Trace))
			}

			summary := summaryView(record.RunSummary)
			formatter.Text("run %s: %s", summary.ID, summary.Title)
			formatter.Text("started %s, elapsed %s", summary.Started, summary.Elapsed)
			formatter.Text("operation: %s%s", record.OperationState, suffixErr(record.OperationErr))
			for _, clause := range record.Clauses {
				marker := "ok  "
				if clause.Outcome != "SATISFIED" {
					marker = "MISS"
				}
				formatter.Text("  %s %s: %s after %d attempt(s)", marker, clause.Title, clause.Outcome, clause.Attempts)
			}
			verdict := "PASS"
			if !record.Passed {
				verdict = "FAIL"
			}
			formatter.Text("%s (%s policy)", verdict, record.Policy)
			return nil
		},
	}
}

func summaryView(run journal.RunSummary) RunSummaryView {
	return RunSummaryView{
		ID:        run.ID,
		Title:     run.Title,
		Policy:    run.Policy,
		Passed:    run.Passed,
		Operation: run.OperationState,
		Started:   run.Started.UTC().Format(time.RFC3339),
		Elapsed:   run.Elapsed.String(),
	}
}

// openJournal opens an existing journal database; a missing file is a
// command error rather than an implicit empty journal.
func openJournal(formatter *OutputFormatter, path string) (*journal.Store, error) {
	if _, err := os.Stat(path); err != nil {
		formatter.Error("NOT_FOUND", "journal database not found: "+path)
		return nil, &ExitError{Code: ExitCommandError, Message: "journal database not found: " + path}
	}
	store, err := journal.Open(path)
	if err != nil {
		formatter.Error("JOURNAL", err.Error())
		return nil, &ExitError{Code: ExitCommandError, Message: "opening journal", Err: err}
	}
	return store, nil
}
