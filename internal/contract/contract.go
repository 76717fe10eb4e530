package contract

import (
	"context"
	"io"
	"log/slog"

	"github.com/avow-dev/avow/internal/clock"
	"github.com/avow-dev/avow/internal/jsonval"
)

// Contract is an ordered set of independent clauses verifying the effects
// of an operation. Immutable; construct through Builder.
type Contract struct {
	clauses []Clause
}

// Clauses returns the contract's clauses in order.
func (c *Contract) Clauses() []Clause {
	out := make([]Clause, len(c.clauses))
	copy(out, c.clauses)
	return out
}

// Result aggregates the per-clause outcomes of one contract verification.
type Result struct {
	// ClauseResults holds one entry per clause, in contract order.
	// Every clause always reports, optional and failed ones included.
	ClauseResults []ClauseResult

	// Verified is the AND over required (non-optional) clauses.
	Verified bool
}

// Snapshot renders the contract result for traces and journals.
func (r *Result) Snapshot() jsonval.Value {
	clauses := make(jsonval.Arr, len(r.ClauseResults))
	for i, cr := range r.ClauseResults {
		clauses[i] = cr.Snapshot()
	}
	return jsonval.Obj{
		"verified": jsonval.Bool(r.Verified),
		"clauses":  clauses,
	}
}

// Verify evaluates every clause to completion or timeout, in order.
//
// Clause independence: each clause re-observes through its own observer and
// a clause's failure does not short-circuit the rest, so the trace always
// covers the whole contract. Optional clauses report but never make the
// contract unverified.
func (c *Contract) Verify(ctx context.Context, clk clock.Clock, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	result := &Result{Verified: true}
	for _, clause := range c.clauses {
		logger.Info("verifying clause", "clause", clause.Title())
		cr := clause.Verify(ctx, clk, logger)
		result.ClauseResults = append(result.ClauseResults, cr)
		if !cr.Satisfied() && !cr.Optional {
			result.Verified = false
		}
	}
	return result
}
