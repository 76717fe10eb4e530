// Package jsonval models JSON-shaped documents observed from external
// systems.
//
// Value is a sealed interface: the only implementations are Null, Str, Num,
// Bool, Arr, and Obj. Unlike stricter IR designs, floats and nulls are
// first-class here because observed cloud documents routinely contain both.
// Values are immutable by convention once constructed from an observation.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing a JSON document node.
// Only Null, Str, Num, Bool, Arr, and Obj implement it.
type Value interface {
	jsonValue() // Sealed - only these types implement it
}

// Null represents a JSON null.
type Null struct{}

func (Null) jsonValue() {}

// Str represents a JSON string.
type Str string

func (Str) jsonValue() {}

// Num represents a JSON number. All numbers are float64 internally so that
// integer and floating point representations of the same quantity compare
// equal (5 == 5.0).
type Num float64

func (Num) jsonValue() {}

// Bool represents a JSON boolean.
type Bool bool

func (Bool) jsonValue() {}

// Arr represents an ordered JSON array.
type Arr []Value

func (Arr) jsonValue() {}

// Obj represents a JSON object. Key order is irrelevant for equality;
// use SortedKeys for deterministic iteration.
type Obj map[string]Value

func (Obj) jsonValue() {}

// SortedKeys returns the object's keys in UTF-16 code unit order, the
// ordering required for canonical serialization (RFC 8785).
// Go's sort.Strings compares UTF-8 bytes, which produces a different order
// for strings outside the BMP.
func (o Obj) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units for RFC 8785
// canonical key ordering.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// Equal reports deep semantic equality between two values.
// Numbers compare by value (int/float coercion), objects ignore key order,
// arrays compare element-wise in order.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Num:
		bv, ok := b.(Num)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Arr:
		bv, ok := b.(Arr)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Obj:
		bv, ok := b.(Obj)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, exists := bv[k]
			if !exists || !Equal(ae, be) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromAny converts a value produced by encoding/json or yaml.v3 decoding
// (map[string]any, []any, string, bool, numerics, nil) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case int:
		return Num(val), nil
	case int64:
		return Num(val), nil
	case float64:
		return Num(val), nil
	case float32:
		return Num(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return Num(f), nil
	case Value:
		return val, nil
	case []any:
		arr := make(Arr, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Obj, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	case map[any]any:
		// yaml.v2-style maps; yaml.v3 produces map[string]any but accept
		// string-keyed any maps for robustness.
		obj := make(Obj, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", k)
			}
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", ks, err)
			}
			obj[ks] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// MustFromAny is FromAny that panics on failure. Intended for literals in
// tests and fixtures where the input shape is statically known.
func MustFromAny(v any) Value {
	val, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Unmarshal decodes JSON bytes into a Value.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// ToAny converts a Value back into the encoding/json-compatible shape
// (map[string]any, []any, float64, ...). Used for rendering reports.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Null:
		return nil
	case Str:
		return string(val)
	case Num:
		return float64(val)
	case Bool:
		return bool(val)
	case Arr:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Obj:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// TypeName returns a short human-readable type name for diagnostics.
func TypeName(v Value) string {
	switch v.(type) {
	case Null:
		return "null"
	case Str:
		return "string"
	case Num:
		return "number"
	case Bool:
		return "bool"
	case Arr:
		return "array"
	case Obj:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
