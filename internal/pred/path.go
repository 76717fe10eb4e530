package pred

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avow-dev/avow/internal/jsonval"
)

// PathSep separates field names in a path expression.
const PathSep = "/"

// noEnumerateTerminal is the optional trailing marker that suppresses the
// default enumeration of a terminal array value, so predicates can be
// applied to the array as a whole.
const noEnumerateTerminal = "@"

// Path is a compiled path expression.
//
// Syntax: PathSep-separated field names, each optionally followed by one or
// more "[<n>]" index specifiers. An unindexed traversal over an array tries
// every element, so path results are inherently ambiguous: navigation yields
// the set of all reachable values. The empty path denotes the document root.
//
// For example, against {"a": [{"x": 1}, {"x": 2}]}:
//
//	"a"       -> {"x":1}, {"x":2}   (array enumerated)
//	"a[1]"    -> {"x":2}
//	"a/x"     -> 1, 2
//	"a[0]/x"  -> 1
//	"a@"      -> [{"x":1},{"x":2}]  (terminal enumeration suppressed)
type Path struct {
	source    string
	segments  []segment
	enumerate bool // enumerate terminal arrays (default true)
}

// segment is one step of a compiled path: a field selection or an array
// index.
type segment struct {
	field   string
	index   int
	isIndex bool
}

func (s segment) String() string {
	if s.isIndex {
		return fmt.Sprintf("[%d]", s.index)
	}
	return s.field
}

// String returns the original path expression.
func (p *Path) String() string {
	return p.source
}

// Compile parses a path expression. Malformed expressions (empty segments,
// unclosed or non-numeric index specifiers) return a ConfigError.
func Compile(path string) (*Path, error) {
	compiled := &Path{source: path, enumerate: true}

	rest := path
	if strings.HasSuffix(rest, noEnumerateTerminal) {
		compiled.enumerate = false
		rest = strings.TrimSuffix(rest, noEnumerateTerminal)
	}
	if rest == "" {
		return compiled, nil
	}

	for i, part := range strings.Split(rest, PathSep) {
		segs, err := compileSegment(part)
		if err != nil {
			return nil, &ConfigError{
				Code:    ErrCodeBadPath,
				Message: fmt.Sprintf("path %q segment %d: %v", path, i, err),
			}
		}
		compiled.segments = append(compiled.segments, segs...)
	}
	return compiled, nil
}

// MustCompile is Compile that panics on error. For statically known paths in
// tests and fixtures.
func MustCompile(path string) *Path {
	p, err := Compile(path)
	if err != nil {
		panic(err)
	}
	return p
}

// compileSegment parses one PathSep-delimited part into a field segment plus
// any trailing index segments.
func compileSegment(part string) ([]segment, error) {
	if part == "" {
		return nil, fmt.Errorf("empty segment")
	}

	var segs []segment
	name, indexes, found := strings.Cut(part, "[")
	if found {
		indexes = "[" + indexes
	}
	if name != "" {
		if strings.ContainsAny(name, "]") {
			return nil, fmt.Errorf("unexpected ']' in field name %q", name)
		}
		segs = append(segs, segment{field: name})
	}

	for indexes != "" {
		if !strings.HasPrefix(indexes, "[") {
			return nil, fmt.Errorf("unexpected trailing %q", indexes)
		}
		closing := strings.Index(indexes, "]")
		if closing < 0 {
			return nil, fmt.Errorf("unclosed index specifier %q", indexes)
		}
		digits := indexes[1:closing]
		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid index %q", digits)
		}
		segs = append(segs, segment{index: n, isIndex: true})
		indexes = indexes[closing+1:]
	}

	if len(segs) == 0 {
		return nil, fmt.Errorf("empty segment")
	}
	return segs, nil
}

// PathValue is a value reached by navigation, together with the explicit
// path taken to reach it (indexes included).
type PathValue struct {
	Path  string
	Value jsonval.Value
}

// Miss records a navigation dead end: where it stopped and why.
type Miss struct {
	Path    string
	Comment string
	At      jsonval.Value
}

// Navigate resolves the path against a document root, returning every
// reachable value and every dead end. Navigation never fails: absent fields,
// out-of-range indexes and type mismatches are reported as misses.
func (p *Path) Navigate(root jsonval.Value) ([]PathValue, []Miss) {
	candidates := []PathValue{{Path: "", Value: root}}
	var misses []Miss

	for _, seg := range p.segments {
		var next []PathValue
		for _, cand := range candidates {
			stepped, stepMisses := step(cand, seg)
			next = append(next, stepped...)
			misses = append(misses, stepMisses...)
		}
		candidates = next
	}

	if p.enumerate {
		candidates = enumerateTerminals(candidates)
	}
	return candidates, misses
}

// step applies one segment to one candidate.
func step(cand PathValue, seg segment) ([]PathValue, []Miss) {
	if seg.isIndex {
		arr, ok := cand.Value.(jsonval.Arr)
		if !ok {
			return nil, []Miss{{
				Path:    cand.Path,
				Comment: fmt.Sprintf("expected array to index %s, found %s", seg, jsonval.TypeName(cand.Value)),
				At:      cand.Value,
			}}
		}
		if seg.index >= len(arr) {
			return nil, []Miss{{
				Path:    cand.Path,
				Comment: fmt.Sprintf("index %s out of range (len %d)", seg, len(arr)),
				At:      cand.Value,
			}}
		}
		return []PathValue{{
			Path:  fmt.Sprintf("%s[%d]", cand.Path, seg.index),
			Value: arr[seg.index],
		}}, nil
	}

	switch val := cand.Value.(type) {
	case jsonval.Obj:
		child, exists := val[seg.field]
		if !exists {
			return nil, []Miss{{
				Path:    cand.Path,
				Comment: fmt.Sprintf("missing field %q", seg.field),
				At:      cand.Value,
			}}
		}
		return []PathValue{{Path: joinPath(cand.Path, seg.field), Value: child}}, nil

	case jsonval.Arr:
		// Unindexed traversal over an array tries every element.
		var hits []PathValue
		var misses []Miss
		for i, elem := range val {
			elemCand := PathValue{Path: fmt.Sprintf("%s[%d]", cand.Path, i), Value: elem}
			stepped, stepMisses := step(elemCand, seg)
			hits = append(hits, stepped...)
			misses = append(misses, stepMisses...)
		}
		return hits, misses

	default:
		return nil, []Miss{{
			Path:    cand.Path,
			Comment: fmt.Sprintf("expected object with field %q, found %s", seg.field, jsonval.TypeName(cand.Value)),
			At:      cand.Value,
		}}
	}
}

// enumerateTerminals expands terminal array values into their elements.
func enumerateTerminals(candidates []PathValue) []PathValue {
	var out []PathValue
	for _, cand := range candidates {
		if arr, ok := cand.Value.(jsonval.Arr); ok {
			for i, elem := range arr {
				out = append(out, PathValue{
					Path:  fmt.Sprintf("%s[%d]", cand.Path, i),
					Value: elem,
				})
			}
			continue
		}
		out = append(out, cand)
	}
	return out
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + PathSep + field
}
