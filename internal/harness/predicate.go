package harness

import (
	"fmt"

	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/pred"
)

// PredicateSpec is the declarative predicate vocabulary.
//
// Exactly one comparator must be set. Path, when present, wraps the
// comparator so it applies to every value the path reaches; a path with no
// comparator (or with exists: true) asserts existence only. Comparator
// operands use pointers so zero-value operands (false, 0, "") remain
// distinguishable from an absent field. An explicit `equals: null` decodes
// as absent; assert null fields with `not: {exists}` style specs instead.
type PredicateSpec struct {
	Path   string `yaml:"path"`
	Exists bool   `yaml:"exists"`

	Equals    *any   `yaml:"equals"`
	NotEquals *any   `yaml:"not_equals"`
	Contains  *any   `yaml:"contains"`
	Regex     string `yaml:"regex"`

	Subset       map[string]any `yaml:"subset"`
	ListContains *PredicateSpec `yaml:"list_contains"`

	Less      *float64 `yaml:"less"`
	LessEq    *float64 `yaml:"less_eq"`
	Greater   *float64 `yaml:"greater"`
	GreaterEq *float64 `yaml:"greater_eq"`

	And []PredicateSpec `yaml:"and"`
	Or  []PredicateSpec `yaml:"or"`
	Not *PredicateSpec  `yaml:"not"`
}

// Compile maps the spec onto a predicate. Malformed specs fail here, at
// load time, never during verification.
func (s *PredicateSpec) Compile() (pred.Predicate, error) {
	inner, err := s.compileComparator()
	if err != nil {
		return nil, err
	}

	if s.Path == "" {
		if inner == nil {
			return nil, &ScenarioError{
				Code:    ErrCodeBadPredicate,
				Message: "predicate has no comparator",
			}
		}
		return inner, nil
	}

	path, err := pred.Compile(s.Path)
	if err != nil {
		return nil, &ScenarioError{
			Code:    ErrCodeBadPredicate,
			Message: err.Error(),
		}
	}
	// A nil comparator under a path asserts existence.
	return pred.AtPath{Path: path, Pred: inner}, nil
}

// compileComparator builds the non-path part of the spec. Returns nil when
// no comparator is set (valid only for existence checks).
func (s *PredicateSpec) compileComparator() (pred.Predicate, error) {
	var preds []pred.Predicate

	addValue := func(raw any, build func(jsonval.Value) pred.Predicate) error {
		val, err := jsonval.FromAny(raw)
		if err != nil {
			return &ScenarioError{
				Code:    ErrCodeBadPredicate,
				Message: fmt.Sprintf("predicate operand: %v", err),
			}
		}
		preds = append(preds, build(val))
		return nil
	}

	if s.Equals != nil {
		if err := addValue(*s.Equals, func(v jsonval.Value) pred.Predicate {
			return pred.Equals{Want: v}
		}); err != nil {
			return nil, err
		}
	}
	if s.NotEquals != nil {
		if err := addValue(*s.NotEquals, func(v jsonval.Value) pred.Predicate {
			return pred.NotEquals{Want: v}
		}); err != nil {
			return nil, err
		}
	}
	if s.Contains != nil {
		if err := addValue(*s.Contains, func(v jsonval.Value) pred.Predicate {
			return pred.Contains{Want: v}
		}); err != nil {
			return nil, err
		}
	}
	if s.Regex != "" {
		re, err := pred.NewRegex(s.Regex)
		if err != nil {
			return nil, &ScenarioError{
				Code:    ErrCodeBadPredicate,
				Message: err.Error(),
			}
		}
		preds = append(preds, re)
	}
	if s.Subset != nil {
		val, err := jsonval.FromAny(map[string]any(s.Subset))
		if err != nil {
			return nil, &ScenarioError{
				Code:    ErrCodeBadPredicate,
				Message: fmt.Sprintf("subset operand: %v", err),
			}
		}
		preds = append(preds, pred.DictSubset{Want: val.(jsonval.Obj)})
	}
	if s.ListContains != nil {
		elem, err := s.ListContains.Compile()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred.ListContains{Elem: elem})
	}
	if s.Less != nil {
		preds = append(preds, pred.NumCompare{Op: pred.OpLess, Want: *s.Less})
	}
	if s.LessEq != nil {
		preds = append(preds, pred.NumCompare{Op: pred.OpLessEq, Want: *s.LessEq})
	}
	if s.Greater != nil {
		preds = append(preds, pred.NumCompare{Op: pred.OpGreater, Want: *s.Greater})
	}
	if s.GreaterEq != nil {
		preds = append(preds, pred.NumCompare{Op: pred.OpGreaterEq, Want: *s.GreaterEq})
	}
	if len(s.And) > 0 {
		sub, err := compileList(s.And)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred.And{Preds: sub})
	}
	if len(s.Or) > 0 {
		sub, err := compileList(s.Or)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred.Or{Preds: sub})
	}
	if s.Not != nil {
		inner, err := s.Not.Compile()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred.Not{Pred: inner})
	}

	switch len(preds) {
	case 0:
		if s.Exists && s.Path == "" {
			return nil, &ScenarioError{
				Code:    ErrCodeBadPredicate,
				Message: "exists requires a path",
			}
		}
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return nil, &ScenarioError{
			Code:    ErrCodeBadPredicate,
			Message: fmt.Sprintf("predicate sets %d comparators, want exactly one (use and/or to combine)", len(preds)),
		}
	}
}

func compileList(specs []PredicateSpec) ([]pred.Predicate, error) {
	out := make([]pred.Predicate, 0, len(specs))
	for i := range specs {
		p, err := specs[i].Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
