// Package contract composes predicates with observations into verifiable
// contracts.
//
// A Clause binds an Observer to a predicate with its own retry budget; a
// Contract is an ordered set of independent clauses. Clauses never share
// mutable state: each verification attempt fetches a fresh Observation, and
// a clause's failure never short-circuits the others, so the final trace is
// always complete.
package contract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avow-dev/avow/internal/clock"
	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/observe"
	"github.com/avow-dev/avow/internal/pred"
)

// MatchMode selects the predicate's arity over an observation.
type MatchMode string

const (
	// MatchAnyObject verifies the clause when at least one observed
	// object satisfies the predicate. The default, suited to list-style
	// observers.
	MatchAnyObject MatchMode = "any_object"

	// MatchObservation applies the predicate to the whole collection of
	// observed objects as a single array value. Suited to cardinality
	// checks and whole-snapshot assertions.
	MatchObservation MatchMode = "observation"
)

// Clause is one observation+predicate check within a contract.
// Immutable; construct through ClauseBuilder.
type Clause struct {
	title        string
	observer     observe.Observer
	predicate    pred.Predicate
	retryWindow  time.Duration
	pollInterval time.Duration
	optional     bool
	mode         MatchMode
}

// Title returns the clause name used in reports.
func (c Clause) Title() string { return c.title }

// Optional reports whether the clause is excluded from the contract verdict.
func (c Clause) Optional() bool { return c.optional }

// Outcome classifies how a clause verification concluded.
type Outcome string

const (
	// OutcomeSatisfied: the predicate held on some attempt.
	OutcomeSatisfied Outcome = "SATISFIED"

	// OutcomeUnsatisfied: the retry window expired without a match.
	OutcomeUnsatisfied Outcome = "UNSATISFIED"

	// OutcomeAborted: a fatal observation error ended retrying early.
	OutcomeAborted Outcome = "ABORTED"

	// OutcomeCanceled: the run's context was canceled mid-retry.
	OutcomeCanceled Outcome = "CANCELED"
)

// ClauseResult is the recorded outcome of verifying one clause: the verdict,
// the final justification tree, and everything needed to debug a failure
// without re-running (attempt count, elapsed time, observer errors).
type ClauseResult struct {
	Title             string
	Optional          bool
	Outcome           Outcome
	Result            *pred.Result
	Attempts          int
	Elapsed           time.Duration
	ObservationErrors []string
}

// Satisfied reports whether the clause's predicate held.
func (r ClauseResult) Satisfied() bool {
	return r.Outcome == OutcomeSatisfied
}

// Snapshot renders the clause result for traces and journals.
func (r ClauseResult) Snapshot() jsonval.Value {
	obj := jsonval.Obj{
		"title":    jsonval.Str(r.Title),
		"outcome":  jsonval.Str(string(r.Outcome)),
		"attempts": jsonval.Num(r.Attempts),
		"elapsed":  jsonval.Str(r.Elapsed.String()),
	}
	if r.Optional {
		obj["optional"] = jsonval.Bool(true)
	}
	if r.Result != nil {
		obj["result"] = r.Result.Snapshot()
	}
	if len(r.ObservationErrors) > 0 {
		errs := make(jsonval.Arr, len(r.ObservationErrors))
		for i, msg := range r.ObservationErrors {
			errs[i] = jsonval.Str(msg)
		}
		obj["observation_errors"] = errs
	}
	return obj
}

// Verify repeatedly observes and evaluates until the predicate holds or the
// retry budget expires.
//
// A zero retry window performs exactly one observation with no sleep.
// Observer errors count as a non-verified attempt and are retried like any
// other miss (many are transient, e.g. a 404 for a resource not yet
// created), unless marked fatal, which aborts immediately with a distinct
// outcome. Cancellation aborts an in-flight sleep promptly and preserves
// the partial trace.
func (c Clause) Verify(ctx context.Context, clk clock.Clock, logger *slog.Logger) ClauseResult {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	start := clk.Now()
	deadline := start.Add(c.retryWindow)

	result := ClauseResult{Title: c.title, Optional: c.optional}
	for {
		result.Attempts++
		obs := c.observer.Observe(ctx)
		result.ObservationErrors = append(result.ObservationErrors, obs.ErrorMessages()...)
		result.Result = c.evaluate(obs)

		if result.Result.Verified {
			result.Outcome = OutcomeSatisfied
			result.Elapsed = clk.Now().Sub(start)
			logger.Debug("clause satisfied",
				"clause", c.title,
				"attempts", result.Attempts,
				"elapsed", result.Elapsed)
			return result
		}

		if obs.HasFatalError() {
			result.Outcome = OutcomeAborted
			result.Elapsed = clk.Now().Sub(start)
			logger.Warn("clause aborted by fatal observation error",
				"clause", c.title,
				"errors", result.ObservationErrors)
			return result
		}

		now := clk.Now()
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			result.Outcome = OutcomeUnsatisfied
			result.Elapsed = now.Sub(start)
			if c.retryWindow > 0 {
				logger.Debug("giving up on clause",
					"clause", c.title,
					"retry_window", c.retryWindow,
					"attempts", result.Attempts)
			}
			return result
		}

		sleep := c.nextSleep(remaining)
		logger.Debug("clause not yet satisfied",
			"clause", c.title,
			"remaining", remaining,
			"retry_in", sleep)
		if err := clk.Sleep(ctx, sleep); err != nil {
			result.Outcome = OutcomeCanceled
			result.Elapsed = clk.Now().Sub(start)
			return result
		}
	}
}

// nextSleep picks the retry interval. An explicit poll interval wins;
// otherwise poll every 1/10 of the window, clamped to [1s, 5s], and never
// past the deadline. Deliberately not exponential: the point is to notice
// convergence soon after it happens.
func (c Clause) nextSleep(remaining time.Duration) time.Duration {
	if c.pollInterval > 0 {
		return min(remaining, c.pollInterval)
	}
	interval := max(time.Second, c.retryWindow/10)
	interval = min(interval, 5*time.Second)
	return min(remaining, interval)
}

// evaluate applies the clause predicate to one observation per the match
// mode. An empty observation is a miss, never an error.
func (c Clause) evaluate(obs *observe.Observation) *pred.Result {
	collection := jsonval.Arr(obs.Objects)

	if c.mode == MatchObservation {
		return pred.Eval(c.predicate, collection)
	}

	// MatchAnyObject: one child per observed object.
	if len(obs.Objects) == 0 {
		comment := "no objects observed"
		if len(obs.Errors) > 0 {
			comment = fmt.Sprintf("no objects observed (%d collection errors)", len(obs.Errors))
		}
		return &pred.Result{Verified: false, Value: collection, Comment: comment}
	}

	verified := false
	children := make([]*pred.Result, 0, len(obs.Objects))
	for _, obj := range obs.Objects {
		child := pred.Eval(c.predicate, obj)
		children = append(children, child)
		if child.Verified {
			verified = true
		}
	}

	comment := fmt.Sprintf("an observed object satisfies (%s)", c.predicate)
	if !verified {
		comment = fmt.Sprintf("no observed object satisfies (%s)", c.predicate)
	}
	return &pred.Result{
		Verified: verified,
		Value:    collection,
		Comment:  comment,
		Children: children,
	}
}
