package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	// KindNull is the zero Value.
	KindNull Kind = iota
	// KindBool holds true or false.
	KindBool
	// KindNumber holds a float64.
	KindNumber
	// KindString holds a string.
	KindString
	// KindArray holds an ordered list of Values.
	KindArray
	// KindObject holds a string-keyed map of Values.
	KindObject
)

// Value is record metadata: a tagged union mirroring the JSON data model
// (null, bool, number, string, array, object) with full nesting preserved.
// Numbers are held as float64, so integers above 2^53 lose precision.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []Value
	obj  map[string]Value
}

// Null returns the null Value. It equals the zero Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array returns an array Value.
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// Object returns an object Value.
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// Kind returns the Value's type tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolVal returns the boolean payload; false for other kinds.
func (v Value) BoolVal() bool { return v.b }

// NumberVal returns the numeric payload; 0 for other kinds.
func (v Value) NumberVal() float64 { return v.num }

// StringVal returns the string payload; "" for other kinds.
func (v Value) StringVal() string { return v.str }

// ArrayVal returns the array payload; nil for other kinds.
func (v Value) ArrayVal() []Value { return v.arr }

// ObjectVal returns the object payload; nil for other kinds.
func (v Value) ObjectVal() map[string]Value { return v.obj }

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("metadata number is not finite: %v", v.num)
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	default:
		return nil, fmt.Errorf("unknown metadata kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected trailing data after metadata value")
	}

	parsed, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("parsing metadata number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []any:
		arr := make([]Value, len(t))
		for i, item := range t {
			parsed, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			arr[i] = parsed
		}
		return Array(arr...), nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			parsed, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			obj[k] = parsed
		}
		return Object(obj), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata type %T", raw)
	}
}

// Equal reports deep equality.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.num == other.num
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, val := range v.obj {
			ov, ok := other.obj[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// render flattens the Value into a searchable text form: scalars as their
// literal text, object keys included, deterministic ordering.
func (v Value) render(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
	case KindBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindNumber:
		fmt.Fprintf(sb, "%g", v.num)
	case KindString:
		sb.WriteString(v.str)
	case KindArray:
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteByte(' ')
			}
			item.render(sb)
		}
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(k)
			sb.WriteByte(' ')
			v.obj[k].render(sb)
		}
	}
}

// Text returns the flattened text form used by substring filtering.
func (v Value) Text() string {
	var sb strings.Builder
	v.render(&sb)
	return sb.String()
}
