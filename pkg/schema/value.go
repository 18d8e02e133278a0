package schema

import (
	"encoding/json"
	"fmt"
)

// ValueKind identifies the scalar carried by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInteger
	KindNumber
	KindBoolean
)

// Value is a typed scalar literal usable in an enum constraint.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

func StringValue(s string) Value  { return Value{kind: KindString, s: s} }
func IntegerValue(i int64) Value  { return Value{kind: KindInteger, i: i} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, f: f} }
func BooleanValue(b bool) Value   { return Value{kind: KindBoolean, b: b} }
func (v Value) Kind() ValueKind   { return v.kind }

// Interface returns the literal as a string, int64, float64 or bool.
func (v Value) Interface() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindNumber:
		return v.f
	case KindBoolean:
		return v.b
	default:
		return v.s
	}
}

func (v Value) String() string { return fmt.Sprint(v.Interface()) }

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
