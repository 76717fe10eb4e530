package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/runner"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("journal: run not found")

// RunSummary is the list-view projection of a recorded run.
type RunSummary struct {
	ID             string
	Title          string
	Policy         string
	Passed         bool
	OperationState string
	OperationErr   string
	Started        time.Time
	Elapsed        time.Duration
}

// ClauseRecord is one recorded clause outcome within a run.
type ClauseRecord struct {
	Seq      int
	Title    string
	Outcome  string
	Optional bool
	Attempts int
	Elapsed  time.Duration
	// Result is the clause's justification tree as canonical JSON.
	Result string
	Errors []string
}

// RunRecord is a fully hydrated recorded run.
type RunRecord struct {
	RunSummary
	// Trace is the whole TestResult snapshot as canonical JSON.
	Trace   string
	Clauses []ClauseRecord
}

// Record persists a finished run and its clause results in one transaction.
// Recording the same run ID twice is a no-op, so retried recordings are
// safe.
func (s *Store) Record(ctx context.Context, result *runner.TestResult) error {
	trace, err := jsonval.MarshalCanonical(result.Snapshot())
	if err != nil {
		return fmt.Errorf("journal: marshal trace: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, title, policy, passed, operation_state, operation_error, started, elapsed_ns, trace)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		result.RunID,
		result.Title,
		string(result.Policy),
		boolInt(result.Passed),
		string(result.OperationState),
		result.OperationErr,
		result.Started.UTC().Format(time.RFC3339Nano),
		result.Elapsed.Nanoseconds(),
		string(trace),
	)
	if err != nil {
		return fmt.Errorf("journal: insert run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already recorded.
		return nil
	}

	if result.ContractResult != nil {
		for seq, cr := range result.ContractResult.ClauseResults {
			resultJSON := "null"
			if cr.Result != nil {
				data, err := jsonval.MarshalCanonical(cr.Result.Snapshot())
				if err != nil {
					return fmt.Errorf("journal: marshal clause result: %w", err)
				}
				resultJSON = string(data)
			}
			errsJSON, err := json.Marshal(cr.ObservationErrors)
			if err != nil {
				return fmt.Errorf("journal: marshal clause errors: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO clause_results
				(run_id, seq, title, outcome, optional, attempts, elapsed_ns, result, errors)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				result.RunID,
				seq,
				cr.Title,
				string(cr.Outcome),
				boolInt(cr.Optional),
				cr.Attempts,
				cr.Elapsed.Nanoseconds(),
				resultJSON,
				string(errsJSON),
			)
			if err != nil {
				return fmt.Errorf("journal: insert clause result: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}

// ListRuns returns recorded runs, newest first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, policy, passed, operation_state, operation_error, started, elapsed_ns
		FROM runs
		ORDER BY started DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query runs: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate runs: %w", err)
	}
	return summaries, nil
}

// GetRun returns one recorded run with its clause results and full trace.
// Returns ErrNotFound if no run has the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, policy, passed, operation_state, operation_error, started, elapsed_ns, trace
		FROM runs
		WHERE id = ?
	`, id)

	record := &RunRecord{}
	var passed int
	var started string
	var elapsedNS int64
	err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Policy,
		&passed,
		&record.OperationState,
		&record.OperationErr,
		&started,
		&elapsedNS,
		&record.Trace,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: scan run: %w", err)
	}
	record.Passed = passed != 0
	record.Elapsed = time.Duration(elapsedNS)
	if record.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("journal: parse started: %w", err)
	}

	clauses, err := s.readClauses(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Clauses = clauses
	return record, nil
}

func (s *Store) readClauses(ctx context.Context, runID string) ([]ClauseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, title, outcome, optional, attempts, elapsed_ns, result, errors
		FROM clause_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: query clause results: %w", err)
	}
	defer rows.Close()

	clauses := []ClauseRecord{}
	for rows.Next() {
		var cr ClauseRecord
		var optional int
		var elapsedNS int64
		var errsJSON string
		if err := rows.Scan(&cr.Seq, &cr.Title, &cr.Outcome, &optional, &cr.Attempts, &elapsedNS, &cr.Result, &errsJSON); err != nil {
			return nil, fmt.Errorf("journal: scan clause result: %w", err)
		}
		cr.Optional = optional != 0
		cr.Elapsed = time.Duration(elapsedNS)
		if err := json.Unmarshal([]byte(errsJSON), &cr.Errors); err != nil {
			return nil, fmt.Errorf("journal: parse clause errors: %w", err)
		}
		clauses = append(clauses, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate clause results: %w", err)
	}
	return clauses, nil
}

func scanSummary(rows *sql.Rows) (RunSummary, error) {
	var summary RunSummary
	var passed int
	var started string
	var elapsedNS int64
	err := rows.Scan(
		&summary.ID,
		&summary.Title,
		&summary.Policy,
		&passed,
		&summary.OperationState,
		&summary.OperationErr,
		&started,
		&elapsedNS,
	)
	if err != nil {
		return RunSummary{}, fmt.Errorf("journal: scan run: %w", err)
	}
	summary.Passed = passed != 0
	summary.Elapsed = time.Duration(elapsedNS)
	if summary.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return RunSummary{}, fmt.Errorf("journal: parse started: %w", err)
	}
	return summary, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
