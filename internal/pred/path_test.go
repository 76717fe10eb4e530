package pred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avow-dev/avow/internal/jsonval"
)

// doc mirrors the canonical path navigation example from the package docs.
var navDoc = jsonval.MustFromAny(map[string]any{
	"a": []any{
		map[string]any{
			"x": "X",
			"y": []any{1, 2, 3, map[string]any{"z": "Z"}, map[string]any{"z": 4}},
		},
		"Plain",
	},
})

func TestCompile_Valid(t *testing.T) {
	tests := []struct {
		path     string
		segments int
	}{
		{"", 0},
		{"a", 1},
		{"a/b", 2},
		{"a[0]", 2},
		{"a[0]/b[3]", 4},
		{"a/b/c", 3},
		{"a@", 1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := Compile(tt.path)
			require.NoError(t, err)
			assert.Len(t, p.segments, tt.segments)
			assert.Equal(t, tt.path, p.String())
		})
	}
}

func TestCompile_Malformed(t *testing.T) {
	tests := []string{
		"a//b",
		"a[",
		"a[x]",
		"a[-1]",
		"a[0",
		"a]b",
		"/a",
		"a/",
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := Compile(path)
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "expected ConfigError, got %v", err)
		})
	}
}

func TestNavigate_FieldAndIndex(t *testing.T) {
	tests := []struct {
		path string
		want []any
	}{
		{"a[1]", []any{"Plain"}},
		{"a[0]/x", []any{"X"}},
		{"a[0]/y[0]", []any{float64(1)}},
		{"a/x", []any{"X"}},
		{"a/y/z", []any{"Z", float64(4)}},
		{"a[0]/y[3]/z", []any{"Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			hits, _ := MustCompile(tt.path).Navigate(navDoc)
			values := make([]any, len(hits))
			for i, hit := range hits {
				values[i] = jsonval.ToAny(hit.Value)
			}
			assert.Equal(t, tt.want, values)
		})
	}
}

func TestNavigate_TerminalArrayEnumeration(t *testing.T) {
	// "a[0]/y" enumerates the terminal list into individual elements.
	hits, _ := MustCompile("a[0]/y").Navigate(navDoc)
	assert.Len(t, hits, 5)
	assert.Equal(t, "a[0]/y[0]", hits[0].Path)

	// The trailing marker keeps the list whole.
	hits, _ = MustCompile("a[0]/y@").Navigate(navDoc)
	require.Len(t, hits, 1)
	_, isArr := hits[0].Value.(jsonval.Arr)
	assert.True(t, isArr)
}

func TestNavigate_MissingFieldIsMissNotError(t *testing.T) {
	doc := jsonval.MustFromAny(map[string]any{"a": map[string]any{"b": 1}})

	hits, misses := MustCompile("a/c").Navigate(doc)
	assert.Empty(t, hits)
	require.Len(t, misses, 1)
	assert.Contains(t, misses[0].Comment, `missing field "c"`)
	assert.Equal(t, "a", misses[0].Path)
}

func TestNavigate_TypeMismatchIsMiss(t *testing.T) {
	doc := jsonval.MustFromAny(map[string]any{"a": "scalar"})

	hits, misses := MustCompile("a/b").Navigate(doc)
	assert.Empty(t, hits)
	require.Len(t, misses, 1)
	assert.Contains(t, misses[0].Comment, "found string")
}

func TestNavigate_IndexOutOfRange(t *testing.T) {
	doc := jsonval.MustFromAny(map[string]any{"a": []any{1}})

	hits, misses := MustCompile("a[5]").Navigate(doc)
	assert.Empty(t, hits)
	require.Len(t, misses, 1)
	assert.Contains(t, misses[0].Comment, "out of range")
}

func TestNavigate_EmptyPathIsRoot(t *testing.T) {
	doc := jsonval.MustFromAny(map[string]any{"a": 1})

	hits, misses := MustCompile("").Navigate(doc)
	assert.Empty(t, misses)
	require.Len(t, hits, 1)
	assert.True(t, jsonval.Equal(doc, hits[0].Value))
}

func TestNavigate_PartialHitsWithMisses(t *testing.T) {
	// Some list elements have the field, some don't; both outcomes report.
	doc := jsonval.MustFromAny(map[string]any{
		"items": []any{
			map[string]any{"name": "foo"},
			map[string]any{"id": 2},
		},
	})

	hits, misses := MustCompile("items/name").Navigate(doc)
	require.Len(t, hits, 1)
	assert.Equal(t, "items[0]/name", hits[0].Path)
	require.Len(t, misses, 1)
	assert.Contains(t, misses[0].Comment, `missing field "name"`)
}
