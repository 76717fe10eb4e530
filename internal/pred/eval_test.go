package pred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avow-dev/avow/internal/jsonval"
)

func v(raw any) jsonval.Value {
	return jsonval.MustFromAny(raw)
}

func TestEval_Equals(t *testing.T) {
	tests := []struct {
		name     string
		want     any
		value    any
		verified bool
	}{
		{"string match", "foo", "foo", true},
		{"string mismatch", "foo", "bar", false},
		{"int float coercion", 5, 5.0, true},
		{"bool", true, true, true},
		{"type mismatch", "1", 1, false},
		{"object ignores key order", map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2, "a": 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Eval(Equals{Want: v(tt.want)}, v(tt.value))
			assert.Equal(t, tt.verified, result.Verified, result.Comment)
			// The attempted value is always carried, pass or fail.
			assert.True(t, jsonval.Equal(v(tt.value), result.Value))
		})
	}
}

func TestEval_NotEquals(t *testing.T) {
	assert.True(t, Eval(NotEquals{Want: v("a")}, v("b")).Verified)
	assert.False(t, Eval(NotEquals{Want: v("a")}, v("a")).Verified)
}

func TestEval_NumCompare(t *testing.T) {
	tests := []struct {
		op       CompareOp
		want     float64
		value    any
		verified bool
	}{
		{OpLess, 10, 5, true},
		{OpLess, 10, 10, false},
		{OpLessEq, 10, 10, true},
		{OpGreater, 3, 5, true},
		{OpGreaterEq, 5, 5, true},
		{OpGreater, 5, 3, false},
	}

	for _, tt := range tests {
		result := Eval(NumCompare{Op: tt.op, Want: tt.want}, v(tt.value))
		assert.Equal(t, tt.verified, result.Verified, "%v %s %v", tt.value, tt.op, tt.want)
	}
}

func TestEval_NumCompare_TypeMismatchIsMiss(t *testing.T) {
	result := Eval(NumCompare{Op: OpLess, Want: 1}, v("nan"))
	assert.False(t, result.Verified)
	assert.Contains(t, result.Comment, "needs a number")
}

func TestEval_Regex(t *testing.T) {
	re, err := NewRegex(`^prod-\d+$`)
	require.NoError(t, err)

	assert.True(t, Eval(re, v("prod-12")).Verified)
	assert.False(t, Eval(re, v("staging-12")).Verified)

	miss := Eval(re, v(42))
	assert.False(t, miss.Verified)
	assert.Contains(t, miss.Comment, "needs a string")
}

func TestNewRegex_Malformed(t *testing.T) {
	_, err := NewRegex(`(`)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestEval_Contains_Substring(t *testing.T) {
	assert.True(t, Eval(Contains{Want: v("oo")}, v("foobar")).Verified)
	assert.False(t, Eval(Contains{Want: v("zz")}, v("foobar")).Verified)
}

func TestEval_Contains_ListMembership(t *testing.T) {
	list := v([]any{"a", "b", "c"})
	assert.True(t, Eval(Contains{Want: v("b")}, list).Verified)
	assert.False(t, Eval(Contains{Want: v("z")}, list).Verified)
}

func TestEval_Contains_ListSubset(t *testing.T) {
	list := v([]any{1, 2, 3})
	assert.True(t, Eval(Contains{Want: v([]any{3, 1})}, list).Verified)
	assert.False(t, Eval(Contains{Want: v([]any{1, 9})}, list).Verified)
}

func TestEval_Contains_ObjectInList(t *testing.T) {
	list := v([]any{
		map[string]any{"name": "foo", "zone": "us-east1"},
		map[string]any{"name": "bar", "zone": "us-west1"},
	})
	// Subset semantics apply to object operands inside lists.
	assert.True(t, Eval(Contains{Want: v(map[string]any{"name": "bar"})}, list).Verified)
	assert.False(t, Eval(Contains{Want: v(map[string]any{"name": "baz"})}, list).Verified)
}

func TestEval_DictSubset(t *testing.T) {
	observed := v(map[string]any{"a": 1, "b": 2})

	good := Eval(DictSubset{Want: jsonval.Obj{"a": jsonval.Num(1)}}, observed)
	assert.True(t, good.Verified)

	bad := Eval(DictSubset{Want: jsonval.Obj{"a": jsonval.Num(1), "c": jsonval.Num(3)}}, observed)
	assert.False(t, bad.Verified)

	// The failure justification identifies the missing key.
	var comments []string
	for _, child := range bad.Children {
		comments = append(comments, child.Comment)
	}
	assert.Contains(t, comments, `missing key "c"`)
}

func TestEval_DictSubset_Nested(t *testing.T) {
	observed := v(map[string]any{
		"metadata": map[string]any{"name": "foo", "labels": map[string]any{"env": "prod", "team": "infra"}},
		"status":   "ACTIVE",
	})

	want := jsonval.Obj{
		"metadata": jsonval.Obj{"labels": jsonval.Obj{"env": jsonval.Str("prod")}},
	}
	assert.True(t, Eval(DictSubset{Want: want}, observed).Verified)

	wrong := jsonval.Obj{
		"metadata": jsonval.Obj{"labels": jsonval.Obj{"env": jsonval.Str("dev")}},
	}
	assert.False(t, Eval(DictSubset{Want: wrong}, observed).Verified)
}

func TestEval_DictSubset_OnNonObjectIsMiss(t *testing.T) {
	result := Eval(DictSubset{Want: jsonval.Obj{"a": jsonval.Num(1)}}, v([]any{1}))
	assert.False(t, result.Verified)
	assert.Contains(t, result.Comment, "needs an object")
}

func TestEval_ListContains_Predicate(t *testing.T) {
	list := v([]any{
		map[string]any{"name": "foo"},
		map[string]any{"name": "bar"},
	})

	p := ListContains{Elem: DictSubset{Want: jsonval.Obj{"name": jsonval.Str("bar")}}}
	result := Eval(p, list)
	assert.True(t, result.Verified)
	// One child per element, preserving order.
	require.Len(t, result.Children, 2)
	assert.False(t, result.Children[0].Verified)
	assert.True(t, result.Children[1].Verified)
}

func TestEval_Logic(t *testing.T) {
	isFoo := Equals{Want: v("foo")}
	isBar := Equals{Want: v("bar")}

	assert.True(t, Eval(And{Preds: []Predicate{isFoo, Contains{Want: v("oo")}}}, v("foo")).Verified)
	assert.False(t, Eval(And{Preds: []Predicate{isFoo, isBar}}, v("foo")).Verified)
	assert.True(t, Eval(Or{Preds: []Predicate{isBar, isFoo}}, v("foo")).Verified)
	assert.False(t, Eval(Or{Preds: []Predicate{isBar}}, v("foo")).Verified)
	assert.True(t, Eval(Not{Pred: isBar}, v("foo")).Verified)
	assert.False(t, Eval(Not{Pred: isFoo}, v("foo")).Verified)
}

func TestEval_And_RunsAllChildren(t *testing.T) {
	// No short-circuit: the trace must include every conjunct.
	result := Eval(And{Preds: []Predicate{
		Equals{Want: v("x")},
		Equals{Want: v("foo")},
	}}, v("foo"))
	assert.False(t, result.Verified)
	require.Len(t, result.Children, 2)
	assert.False(t, result.Children[0].Verified)
	assert.True(t, result.Children[1].Verified)
}

func TestEval_AtPath(t *testing.T) {
	doc := v(map[string]any{
		"instances": []any{
			map[string]any{"name": "a", "state": "PENDING"},
			map[string]any{"name": "b", "state": "RUNNING"},
		},
	})

	p := AtPath{Path: MustCompile("instances/state"), Pred: Equals{Want: v("RUNNING")}}
	result := Eval(p, doc)
	assert.True(t, result.Verified)

	p = AtPath{Path: MustCompile("instances/state"), Pred: Equals{Want: v("TERMINATED")}}
	assert.False(t, Eval(p, doc).Verified)
}

func TestEval_AtPath_MissIsReportable(t *testing.T) {
	doc := v(map[string]any{"a": map[string]any{"b": 1}})

	result := Eval(AtPath{Path: MustCompile("a/c"), Pred: Equals{Want: v(1)}}, doc)
	assert.False(t, result.Verified)
	assert.Contains(t, result.Comment, "not found")
	require.Len(t, result.Children, 1)
	assert.Contains(t, result.Children[0].Comment, `missing field "c"`)
}

func TestEval_AtPath_Existence(t *testing.T) {
	doc := v(map[string]any{"a": map[string]any{"b": 1}})

	assert.True(t, Eval(AtPath{Path: MustCompile("a/b")}, doc).Verified)
	assert.False(t, Eval(AtPath{Path: MustCompile("a/z")}, doc).Verified)
}

func TestEval_Deterministic(t *testing.T) {
	doc := v(map[string]any{
		"items": []any{
			map[string]any{"name": "foo", "n": 1},
			map[string]any{"name": "bar", "n": 2},
		},
	})
	p := AtPath{
		Path: MustCompile("items"),
		Pred: DictSubset{Want: jsonval.Obj{"name": jsonval.Str("bar"), "n": jsonval.Num(2)}},
	}

	first := Eval(p, doc)
	for i := 0; i < 5; i++ {
		again := Eval(p, doc)
		firstSnap, err := jsonval.MarshalCanonical(first.Snapshot())
		require.NoError(t, err)
		againSnap, err := jsonval.MarshalCanonical(again.Snapshot())
		require.NoError(t, err)
		assert.Equal(t, string(firstSnap), string(againSnap))
	}
}

func TestResult_Snapshot(t *testing.T) {
	result := Eval(Equals{Want: v("x")}, v("y"))
	snap := result.Snapshot()

	obj, ok := snap.(jsonval.Obj)
	require.True(t, ok)
	assert.Equal(t, jsonval.Bool(false), obj["verified"])
	assert.Equal(t, jsonval.Str("y"), obj["value"])
	assert.NotEmpty(t, obj["comment"])
}
