package pred

import (
	"fmt"
	"strings"

	"github.com/avow-dev/avow/internal/jsonval"
)

// Eval applies a predicate to a value and returns the justification tree.
//
// Eval never fails and performs no I/O: mismatches, absent paths and type
// mismatches are all reported as unverified Results with comments. Unknown
// predicate types panic; the variant set is sealed, so that is a programmer
// error, not a runtime condition.
func Eval(p Predicate, value jsonval.Value) *Result {
	switch pt := p.(type) {
	case Equals:
		if jsonval.Equal(value, pt.Want) {
			return good(value, fmt.Sprintf("equals %s", renderOperand(pt.Want)))
		}
		return missResult(value, fmt.Sprintf(
			"expected %s, found %s", renderOperand(pt.Want), renderOperand(value)))

	case NotEquals:
		if !jsonval.Equal(value, pt.Want) {
			return good(value, fmt.Sprintf("differs from %s", renderOperand(pt.Want)))
		}
		return missResult(value, fmt.Sprintf(
			"expected value different from %s", renderOperand(pt.Want)))

	case NumCompare:
		return evalNumCompare(pt, value)

	case Regex:
		str, ok := value.(jsonval.Str)
		if !ok {
			return missResult(value, fmt.Sprintf(
				"regex needs a string, found %s", jsonval.TypeName(value)))
		}
		if pt.Pattern.MatchString(string(str)) {
			return good(value, fmt.Sprintf("matches /%s/", pt.Pattern))
		}
		return missResult(value, fmt.Sprintf(
			"%q does not match /%s/", string(str), pt.Pattern))

	case Contains:
		return evalContains(pt.Want, value)

	case DictSubset:
		obj, ok := value.(jsonval.Obj)
		if !ok {
			return missResult(value, fmt.Sprintf(
				"dict-subset needs an object, found %s", jsonval.TypeName(value)))
		}
		return evalDictSubset(pt.Want, obj)

	case ListContains:
		return evalListContains(pt.Elem, value)

	case And:
		return evalAnd(pt.Preds, value)

	case Or:
		return evalOr(pt.Preds, value)

	case Not:
		inner := Eval(pt.Pred, value)
		return &Result{
			Verified: !inner.Verified,
			Value:    value,
			Comment:  fmt.Sprintf("negation of: %s", inner.Comment),
			Children: []*Result{inner},
		}

	case AtPath:
		return evalAtPath(pt, value)

	default:
		panic(fmt.Sprintf("pred: unknown predicate type %T", p))
	}
}

func evalNumCompare(p NumCompare, value jsonval.Value) *Result {
	num, ok := value.(jsonval.Num)
	if !ok {
		return missResult(value, fmt.Sprintf(
			"numeric compare needs a number, found %s", jsonval.TypeName(value)))
	}
	got := float64(num)
	var holds bool
	switch p.Op {
	case OpLess:
		holds = got < p.Want
	case OpLessEq:
		holds = got <= p.Want
	case OpGreater:
		holds = got > p.Want
	case OpGreaterEq:
		holds = got >= p.Want
	default:
		panic(fmt.Sprintf("pred: unknown compare op %q", p.Op))
	}
	if holds {
		return good(value, fmt.Sprintf("%v %s %v", got, p.Op, p.Want))
	}
	return missResult(value, fmt.Sprintf("%v is not %s %v", got, p.Op, p.Want))
}

// evalContains dispatches containment on the observed value's type.
func evalContains(want, value jsonval.Value) *Result {
	switch got := value.(type) {
	case jsonval.Str:
		substr, ok := want.(jsonval.Str)
		if !ok {
			return missResult(value, fmt.Sprintf(
				"cannot search a string for %s", jsonval.TypeName(want)))
		}
		if containsSubstring(string(got), string(substr)) {
			return good(value, fmt.Sprintf("contains substring %q", string(substr)))
		}
		return missResult(value, fmt.Sprintf(
			"%q does not contain %q", string(got), string(substr)))

	case jsonval.Obj:
		sub, ok := want.(jsonval.Obj)
		if !ok {
			return missResult(value, fmt.Sprintf(
				"cannot search an object for %s", jsonval.TypeName(want)))
		}
		return evalDictSubset(sub, got)

	case jsonval.Arr:
		if wantArr, ok := want.(jsonval.Arr); ok {
			return evalListSubset(wantArr, got)
		}
		// Scalar or object operand: some element must contain it.
		children := make([]*Result, 0, len(got))
		for _, elem := range got {
			child := evalContains(want, elem)
			children = append(children, child)
			if child.Verified {
				return &Result{
					Verified: true,
					Value:    value,
					Comment:  fmt.Sprintf("list has an element containing %s", renderOperand(want)),
					Children: children,
				}
			}
		}
		return &Result{
			Verified: false,
			Value:    value,
			Comment:  fmt.Sprintf("no list element contains %s", renderOperand(want)),
			Children: children,
		}

	default:
		if jsonval.Equal(value, want) {
			return good(value, fmt.Sprintf("equals %s", renderOperand(want)))
		}
		return missResult(value, fmt.Sprintf(
			"expected %s, found %s", renderOperand(want), renderOperand(value)))
	}
}

// evalListSubset verifies every wanted element is contained in some observed
// element. One child per wanted element: the witness on success, a miss
// otherwise.
func evalListSubset(want jsonval.Arr, got jsonval.Arr) *Result {
	verified := true
	children := make([]*Result, 0, len(want))
	for _, wantElem := range want {
		found := false
		for _, gotElem := range got {
			if sub := evalContains(wantElem, gotElem); sub.Verified {
				children = append(children, sub)
				found = true
				break
			}
		}
		if !found {
			verified = false
			children = append(children, missResult(got, fmt.Sprintf(
				"no element contains %s", renderOperand(wantElem))))
		}
	}

	comment := "list contains all expected elements"
	if !verified {
		comment = "list is missing expected elements"
	}
	return &Result{Verified: verified, Value: got, Comment: comment, Children: children}
}

// evalDictSubset verifies want ⊆ got. Extra keys in got are ignored. Nested
// objects recurse as subsets; nested arrays compare as list subsets.
// One child per wanted key, in canonical key order for determinism.
func evalDictSubset(want, got jsonval.Obj) *Result {
	verified := true
	children := make([]*Result, 0, len(want))

	for _, key := range want.SortedKeys() {
		wantVal := want[key]
		gotVal, exists := got[key]
		if !exists {
			verified = false
			children = append(children, missResult(got, fmt.Sprintf("missing key %q", key)))
			continue
		}

		var child *Result
		switch wv := wantVal.(type) {
		case jsonval.Obj:
			if gotObj, ok := gotVal.(jsonval.Obj); ok {
				child = evalDictSubset(wv, gotObj)
			} else {
				child = missResult(gotVal, fmt.Sprintf(
					"key %q: expected object, found %s", key, jsonval.TypeName(gotVal)))
			}
		case jsonval.Arr:
			if gotArr, ok := gotVal.(jsonval.Arr); ok {
				child = evalListSubset(wv, gotArr)
			} else {
				child = missResult(gotVal, fmt.Sprintf(
					"key %q: expected array, found %s", key, jsonval.TypeName(gotVal)))
			}
		default:
			if jsonval.Equal(gotVal, wantVal) {
				child = good(gotVal, fmt.Sprintf("key %q equals %s", key, renderOperand(wantVal)))
			} else {
				child = missResult(gotVal, fmt.Sprintf(
					"key %q: expected %s, found %s",
					key, renderOperand(wantVal), renderOperand(gotVal)))
			}
		}

		if !child.Verified {
			verified = false
		}
		children = append(children, child)
	}

	comment := "object contains expected subset"
	if !verified {
		comment = "object is missing expected subset"
	}
	return &Result{Verified: verified, Value: got, Comment: comment, Children: children}
}

func evalListContains(elem Predicate, value jsonval.Value) *Result {
	arr, ok := value.(jsonval.Arr)
	if !ok {
		return missResult(value, fmt.Sprintf(
			"list-contains needs an array, found %s", jsonval.TypeName(value)))
	}

	children := make([]*Result, 0, len(arr))
	verified := false
	for _, e := range arr {
		child := Eval(elem, e)
		children = append(children, child)
		if child.Verified {
			verified = true
		}
	}

	comment := fmt.Sprintf("an element satisfies (%s)", elem)
	if !verified {
		comment = fmt.Sprintf("no element satisfies (%s)", elem)
	}
	return &Result{Verified: verified, Value: value, Comment: comment, Children: children}
}

func evalAnd(preds []Predicate, value jsonval.Value) *Result {
	verified := true
	children := make([]*Result, 0, len(preds))
	for _, p := range preds {
		child := Eval(p, value)
		children = append(children, child)
		if !child.Verified {
			verified = false
		}
	}

	comment := "all conjuncts hold"
	if !verified {
		comment = "a conjunct does not hold"
	}
	return &Result{Verified: verified, Value: value, Comment: comment, Children: children}
}

func evalOr(preds []Predicate, value jsonval.Value) *Result {
	verified := false
	children := make([]*Result, 0, len(preds))
	for _, p := range preds {
		child := Eval(p, value)
		children = append(children, child)
		if child.Verified {
			verified = true
		}
	}

	comment := "a disjunct holds"
	if !verified {
		comment = "no disjunct holds"
	}
	return &Result{Verified: verified, Value: value, Comment: comment, Children: children}
}

// evalAtPath navigates the path and applies the sub-predicate to every
// reached value. Verified when any reached value satisfies the predicate
// (or, for a nil predicate, when the path reaches any value at all).
func evalAtPath(p AtPath, value jsonval.Value) *Result {
	hits, misses := p.Path.Navigate(value)

	var children []*Result
	verified := false
	for _, hit := range hits {
		var child *Result
		if p.Pred == nil {
			child = good(hit.Value, "path reaches a value")
		} else {
			child = Eval(p.Pred, hit.Value)
		}
		child.Path = hit.Path
		if child.Verified {
			verified = true
		}
		children = append(children, child)
	}
	for _, m := range misses {
		child := missResult(m.At, m.Comment)
		child.Path = m.Path
		children = append(children, child)
	}

	var comment string
	switch {
	case verified:
		comment = fmt.Sprintf("path %q satisfies predicate", p.Path)
	case len(hits) == 0:
		comment = fmt.Sprintf("path %q not found", p.Path)
	default:
		comment = fmt.Sprintf("no value at path %q satisfies predicate", p.Path)
	}
	return &Result{Verified: verified, Value: value, Comment: comment, Children: children}
}

func containsSubstring(s, substr string) bool {
	return strings.Contains(s, substr)
}
