// Package pred implements the predicate engine: a closed set of composable
// predicates evaluated over JSON-shaped documents.
//
// Predicates are a tagged-variant set dispatched by a single recursive
// evaluator (Eval). Evaluation is a pure function of (document, predicate):
// no I/O, no hidden state, and the same inputs always produce an identical
// Result tree. A predicate that does not match reports a miss with an
// explanatory comment; misses are reportable outcomes, never errors.
package pred

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/avow-dev/avow/internal/jsonval"
)

// Predicate is the sealed interface over the predicate variant set.
// Only the types in this package implement it.
type Predicate interface {
	predicate() // Sealed
	String() string
}

// Equals verifies the value is semantically equal to Want.
// Numeric comparison coerces int/float; strings are exact matches.
type Equals struct {
	Want jsonval.Value
}

func (Equals) predicate() {}

func (p Equals) String() string { return fmt.Sprintf("== %s", renderOperand(p.Want)) }

// NotEquals verifies the value differs from Want.
type NotEquals struct {
	Want jsonval.Value
}

func (NotEquals) predicate() {}

func (p NotEquals) String() string { return fmt.Sprintf("!= %s", renderOperand(p.Want)) }

// Contains verifies containment, dispatching on the observed value's type:
//
//   - string value, string operand: substring match
//   - object value, object operand: dict-subset (see DictSubset)
//   - array value, array operand: every operand element is contained in
//     some element of the value
//   - array value, scalar operand: some element contains the operand
//   - otherwise: semantic equality
type Contains struct {
	Want jsonval.Value
}

func (Contains) predicate() {}

func (p Contains) String() string { return fmt.Sprintf("contains %s", renderOperand(p.Want)) }

// Regex verifies a string value matches a compiled regular expression.
// Non-string values are misses, not errors.
type Regex struct {
	Pattern *regexp.Regexp
}

func (Regex) predicate() {}

func (p Regex) String() string { return fmt.Sprintf("matches /%s/", p.Pattern.String()) }

// NewRegex compiles pattern into a Regex predicate.
// A malformed pattern is a configuration error raised at build time.
func NewRegex(pattern string) (Regex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Regex{}, &ConfigError{
			Code:    ErrCodeBadPredicate,
			Message: fmt.Sprintf("invalid regex %q: %v", pattern, err),
		}
	}
	return Regex{Pattern: re}, nil
}

// CompareOp names a numeric comparison operator.
type CompareOp string

const (
	OpLess      CompareOp = "<"
	OpLessEq    CompareOp = "<="
	OpGreater   CompareOp = ">"
	OpGreaterEq CompareOp = ">="
)

// NumCompare verifies a numeric value against Want using Op.
// Non-numeric observed values are misses.
type NumCompare struct {
	Op   CompareOp
	Want float64
}

func (NumCompare) predicate() {}

func (p NumCompare) String() string { return fmt.Sprintf("%s %v", p.Op, p.Want) }

// DictSubset verifies the observed object is a superset of Want: every key
// in Want must exist in the observed object with an equal or
// recursively-subset value. Extra observed keys are ignored.
type DictSubset struct {
	Want jsonval.Obj
}

func (DictSubset) predicate() {}

func (p DictSubset) String() string { return fmt.Sprintf("⊇ %s", renderOperand(p.Want)) }

// ListContains verifies the observed array has at least one element
// satisfying Elem.
type ListContains struct {
	Elem Predicate
}

func (ListContains) predicate() {}

func (p ListContains) String() string { return fmt.Sprintf("any element (%s)", p.Elem) }

// And verifies every sub-predicate holds.
type And struct {
	Preds []Predicate
}

func (And) predicate() {}

func (p And) String() string { return joinPreds(p.Preds, " AND ") }

// Or verifies at least one sub-predicate holds.
type Or struct {
	Preds []Predicate
}

func (Or) predicate() {}

func (p Or) String() string { return joinPreds(p.Preds, " OR ") }

// Not inverts a sub-predicate.
type Not struct {
	Pred Predicate
}

func (Not) predicate() {}

func (p Not) String() string { return fmt.Sprintf("NOT (%s)", p.Pred) }

// AtPath navigates a path expression from the document root and applies Pred
// to each reached value. The path result is ambiguous by design: an
// unindexed segment over an array tries every element, so AtPath is verified
// when any reached value satisfies Pred. A nil Pred asserts existence only.
type AtPath struct {
	Path *Path
	Pred Predicate
}

func (AtPath) predicate() {}

func (p AtPath) String() string {
	if p.Pred == nil {
		return fmt.Sprintf("%q exists", p.Path)
	}
	return fmt.Sprintf("%q %s", p.Path, p.Pred)
}

// EqualsAt is shorthand for the most common clause predicate: the value at
// path equals want. The path is compiled eagerly so malformed paths fail at
// contract-build time.
func EqualsAt(path string, want jsonval.Value) (AtPath, error) {
	compiled, err := Compile(path)
	if err != nil {
		return AtPath{}, err
	}
	return AtPath{Path: compiled, Pred: Equals{Want: want}}, nil
}

func joinPreds(preds []Predicate, sep string) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = "(" + p.String() + ")"
	}
	return strings.Join(parts, sep)
}

// renderOperand renders a predicate operand compactly for String().
func renderOperand(v jsonval.Value) string {
	data, err := jsonval.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
