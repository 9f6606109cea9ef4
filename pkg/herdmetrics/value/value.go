// Package value defines the dynamic values that flow through formula
// evaluation: numbers, text, booleans, dates, lists and null.
//
// Value is a closed sum type. The coercion helpers (ToNumber, ToText,
// Truthy) and the comparison helpers (StrictEqual, Compare) implement the
// permissive rules formulas rely on, so the evaluator never needs an untyped
// runtime.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindBool
	KindDate
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is an immutable formula value. The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	text string
	b    bool
	t    time.Time
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// List returns a list value holding a copy of vs.
func List(vs ...Value) Value {
	items := make([]Value, len(vs))
	copy(items, vs)
	return Value{kind: KindList, list: items}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Num returns the number held by v, or 0 if v is not a number.
func (v Value) Num() float64 { return v.num }

// Str returns the text held by v, or "" if v is not text.
func (v Value) Str() string { return v.text }

// Boolean returns the boolean held by v, or false if v is not a bool.
func (v Value) Boolean() bool { return v.b }

// Time returns the date held by v, or the zero time if v is not a date.
func (v Value) Time() time.Time { return v.t }

// Items returns the elements of a list value. The slice must not be modified.
func (v Value) Items() []Value { return v.list }

// String implements fmt.Stringer using ToText.
func (v Value) String() string { return ToText(v) }

// FromAny converts a plain Go value, as found in records and parameter maps,
// into a Value.
func FromAny(x any) Value {
	switch val := x.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case float64:
		return Number(val)
	case float32:
		return Number(float64(val))
	case int:
		return Number(float64(val))
	case int8:
		return Number(float64(val))
	case int16:
		return Number(float64(val))
	case int32:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case uint:
		return Number(float64(val))
	case uint8:
		return Number(float64(val))
	case uint16:
		return Number(float64(val))
	case uint32:
		return Number(float64(val))
	case uint64:
		return Number(float64(val))
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return Number(f)
		}
		return Text(val.String())
	case string:
		return Text(val)
	case bool:
		return Bool(val)
	case time.Time:
		return Date(val)
	case *time.Time:
		if val == nil {
			return Null()
		}
		return Date(*val)
	case []Value:
		return List(val...)
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromAny(item)
		}
		return Value{kind: KindList, list: items}
	case []string:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = Text(item)
		}
		return Value{kind: KindList, list: items}
	case []float64:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = Number(item)
		}
		return Value{kind: KindList, list: items}
	case []int:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = Number(float64(item))
		}
		return Value{kind: KindList, list: items}
	default:
		return Text(fmt.Sprintf("%v", val))
	}
}

// Any converts v back to a plain Go value: nil, float64, string, bool,
// time.Time or []any.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes v as its natural JSON form. Non-finite numbers have no
// JSON representation and encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindBool:
		return json.Marshal(v.b)
	case KindDate:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	case KindList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}
