package pred

import (
	"github.com/avow-dev/avow/internal/jsonval"
)

// Result is the outcome of applying one predicate to one value: a verdict
// plus the justification needed to reconstruct why it was reached without
// re-running the predicate.
//
// Composite predicates build a tree: the root's verdict follows the
// variant's aggregation rule over Children (AND: all verified; OR: any;
// ListContains: some element verified; AtPath: some reached value verified).
// Value always carries the actually-attempted value, even on failure.
type Result struct {
	// Verified is the verdict.
	Verified bool

	// Value is the value the predicate was applied to (or attempted on).
	Value jsonval.Value

	// Comment explains the verdict in human-readable form.
	Comment string

	// Path is the document path of Value when the result came from path
	// navigation; empty otherwise.
	Path string

	// Children are the sub-results for composite predicates, in
	// evaluation order.
	Children []*Result
}

// Snapshot renders the result tree as a JSON document for traces, journals
// and golden files. The rendering is stable: keys are fixed and children
// preserve evaluation order.
func (r *Result) Snapshot() jsonval.Value {
	obj := jsonval.Obj{
		"verified": jsonval.Bool(r.Verified),
		"comment":  jsonval.Str(r.Comment),
	}
	if r.Value != nil {
		obj["value"] = r.Value
	}
	if r.Path != "" {
		obj["path"] = jsonval.Str(r.Path)
	}
	if len(r.Children) > 0 {
		children := make(jsonval.Arr, len(r.Children))
		for i, child := range r.Children {
			children[i] = child.Snapshot()
		}
		obj["children"] = children
	}
	return obj
}

// good builds a verified result.
func good(value jsonval.Value, comment string) *Result {
	return &Result{Verified: true, Value: value, Comment: comment}
}

// miss builds an unverified result. A miss is a normal reportable outcome,
// not an error.
func missResult(value jsonval.Value, comment string) *Result {
	return &Result{Verified: false, Value: value, Comment: comment}
}
