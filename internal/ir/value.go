package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing constrained fact field types.
// Only String, Int, Bool, Array, and Object implement it.
// NO float type - floats break canonical hashing determinism.
type Value interface {
	value() // Sealed - only these types implement it
}

// String represents a string field value.
type String string

func (String) value() {}

// Int represents an integer field value. Always int64, never float64.
type Int int64

func (Int) value() {}

// Bool represents a boolean field value.
type Bool bool

func (Bool) value() {}

// Array represents an array of Value elements.
type Array []Value

func (Array) value() {}

// Object represents a map of string keys to Value elements.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// Equal reports whether two values are equal.
// Values of different dynamic types are never equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, exists := bv[k]
			if !exists || !Equal(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromGo converts a plain Go value (as produced by yaml/json decoding)
// into a Value. Floats and nulls are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q is forbidden", val)
		}
		return Int(i), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Value back to a plain Go value for generic JSON output.
func ToGo(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// CRITICAL: Must use unicode/utf16.Encode for correct surrogate handling.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

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

// MarshalJSON implements json.Marshaler for Object.
// This is ordinary (non-canonical) JSON for display and storage;
// use MarshalCanonical for hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToGo(obj).(map[string]any))
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// unmarshalValue decodes a JSON value into the appropriate Value type.
// Floats and nulls in JSON are rejected.
func unmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return nil, fmt.Errorf("null is forbidden")

	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		arr := make(Array, len(raw))
		for i, v := range raw {
			val, err := unmarshalValue(v)
			if err != nil {
				return nil, fmt.Errorf("array index %d: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil

	case '{':
		var obj Object
		if err := obj.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		// Numeric: accept integers only
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q is forbidden", n)
		}
		return Int(i), nil
	}
}
