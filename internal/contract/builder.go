package contract

import (
	"time"

	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/observe"
	"github.com/avow-dev/avow/internal/pred"
)

// ClauseBuilder accumulates a clause specification and produces an
// immutable Clause. Incomplete specifications fail at Build, never at
// verification time.
type ClauseBuilder struct {
	clause Clause
	err    error
}

// NewClause starts a clause builder with the given report title.
func NewClause(title string) *ClauseBuilder {
	return &ClauseBuilder{clause: Clause{
		title: title,
		mode:  MatchAnyObject,
	}}
}

// Observer binds the observer that collects verification data.
func (b *ClauseBuilder) Observer(obs observe.Observer) *ClauseBuilder {
	if b.clause.observer != nil && b.err == nil {
		b.err = &BuildError{
			Code:    ErrCodeObserverRebound,
			Clause:  b.clause.title,
			Message: "observer was already set on clause",
		}
	}
	b.clause.observer = obs
	return b
}

// Predicate binds the predicate the observation must satisfy.
func (b *ClauseBuilder) Predicate(p pred.Predicate) *ClauseBuilder {
	b.clause.predicate = p
	return b
}

// ExpectPath is shorthand for Predicate(AtPath(path, sub)): the value at
// path must satisfy sub. A malformed path surfaces at Build.
func (b *ClauseBuilder) ExpectPath(path string, sub pred.Predicate) *ClauseBuilder {
	compiled, err := pred.Compile(path)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.clause.predicate = pred.AtPath{Path: compiled, Pred: sub}
	return b
}

// ExpectValueAt is shorthand for ExpectPath with an equality predicate.
func (b *ClauseBuilder) ExpectValueAt(path string, want jsonval.Value) *ClauseBuilder {
	return b.ExpectPath(path, pred.Equals{Want: want})
}

// RetryWindow sets how long the clause may keep re-observing before being
// declared failed. Zero (the default) performs exactly one observation.
func (b *ClauseBuilder) RetryWindow(d time.Duration) *ClauseBuilder {
	b.clause.retryWindow = d
	return b
}

// PollInterval overrides the derived retry interval.
func (b *ClauseBuilder) PollInterval(d time.Duration) *ClauseBuilder {
	b.clause.pollInterval = d
	return b
}

// Optional marks the clause as reported-only: it contributes to the trace
// but never makes the contract unverified.
func (b *ClauseBuilder) Optional() *ClauseBuilder {
	b.clause.optional = true
	return b
}

// MatchWholeObservation applies the predicate to the collected objects as a
// single array instead of per object.
func (b *ClauseBuilder) MatchWholeObservation() *ClauseBuilder {
	b.clause.mode = MatchObservation
	return b
}

// Build validates the specification and returns the immutable Clause.
func (b *ClauseBuilder) Build() (Clause, error) {
	if b.err != nil {
		return Clause{}, b.err
	}
	if b.clause.observer == nil {
		return Clause{}, &BuildError{
			Code:    ErrCodeMissingObserver,
			Clause:  b.clause.title,
			Message: "no observer bound to clause",
		}
	}
	if b.clause.predicate == nil {
		return Clause{}, &BuildError{
			Code:    ErrCodeMissingPredicate,
			Clause:  b.clause.title,
			Message: "no predicate bound to clause",
		}
	}
	return b.clause, nil
}

// Builder assembles clauses into a Contract.
type Builder struct {
	builders []*ClauseBuilder
}

// NewBuilder starts an empty contract builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// NewClause adds a clause to the contract and returns its builder for
// further specification.
func (b *Builder) NewClause(title string) *ClauseBuilder {
	cb := NewClause(title)
	b.builders = append(b.builders, cb)
	return cb
}

// Build produces the immutable Contract. The first clause specification
// error aborts the build; configuration errors never defer to run time.
func (b *Builder) Build() (*Contract, error) {
	contract := &Contract{}
	for _, cb := range b.builders {
		clause, err := cb.Build()
		if err != nil {
			return nil, err
		}
		contract.clauses = append(contract.clauses, clause)
	}
	return contract, nil
}
