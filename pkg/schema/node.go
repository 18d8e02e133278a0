// Package schema builds the JSON Schema documents attached to structured-output
// requests.
//
// A Node is immutable once built. It is created through the kind-specific
// factories (String, Number, Integer, Boolean, Object, Array, Enum) whose option
// types only accept constraints that make sense for that kind, so a pattern on a
// boolean or an items schema on a string does not compile.
package schema

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// Type is the JSON Schema "type" keyword.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Node is one JSON Schema constraint node. Only the constraints matching its
// type are ever set.
type Node struct {
	typ         Type
	description *string
	enum        []Value

	// string
	minLength *int
	maxLength *int
	pattern   *string
	format    *string

	// number, integer
	minimum          *float64
	maximum          *float64
	exclusiveMinimum *float64
	exclusiveMaximum *float64
	multipleOf       *float64

	// object
	properties           map[string]*Node
	required             []string
	additionalProperties *bool
	minProperties        *int
	maxProperties        *int

	// array
	items       *Node
	minItems    *int
	maxItems    *int
	uniqueItems *bool
}

// String returns a string schema.
func String(opts ...StringOption) *Node {
	n := &Node{typ: TypeString}
	for _, o := range opts {
		o.applyString(n)
	}
	return n
}

// Number returns a number schema.
func Number(opts ...NumericOption) *Node {
	n := &Node{typ: TypeNumber}
	for _, o := range opts {
		o.applyNumeric(n)
	}
	return n
}

// Integer returns an integer schema.
func Integer(opts ...NumericOption) *Node {
	n := &Node{typ: TypeInteger}
	for _, o := range opts {
		o.applyNumeric(n)
	}
	return n
}

// Boolean returns a boolean schema.
func Boolean(opts ...BooleanOption) *Node {
	n := &Node{typ: TypeBoolean}
	for _, o := range opts {
		o.applyBoolean(n)
	}
	return n
}

// Object returns an object schema. Objects are closed (additionalProperties is
// false) unless AdditionalProperties says otherwise.
func Object(opts ...ObjectOption) *Node {
	closed := false
	n := &Node{typ: TypeObject, additionalProperties: &closed}
	for _, o := range opts {
		o.applyObject(n)
	}
	return n
}

// Array returns an array schema.
func Array(opts ...ArrayOption) *Node {
	n := &Node{typ: TypeArray}
	for _, o := range opts {
		o.applyArray(n)
	}
	return n
}

// Enum returns a string schema restricted to values. The node is always of type
// string whatever the kinds of values; numeric enumerations are built with
// Integer(EnumValues(...)) or Number(EnumValues(...)).
func Enum(description string, values ...Value) *Node {
	n := &Node{typ: TypeString, enum: slices.Clone(values)}
	if description != "" {
		n.description = &description
	}
	return n
}

// Type returns the node's JSON type.
func (n *Node) Type() Type { return n.typ }

// Description returns the description and whether one is set.
func (n *Node) Description() (string, bool) {
	if n.description == nil {
		return "", false
	}
	return *n.description, true
}

// EnumValues returns a copy of the enum values, or nil.
func (n *Node) EnumValues() []Value { return slices.Clone(n.enum) }

// Format returns the string format hint, or "".
func (n *Node) Format() string {
	if n.format == nil {
		return ""
	}
	return *n.format
}

// Items returns the array item schema, or nil.
func (n *Node) Items() *Node { return n.items }

// Property returns the schema of the named object property.
func (n *Node) Property(name string) (*Node, bool) {
	p, ok := n.properties[name]
	return p, ok
}

// PropertyNames returns the object's property names in sorted order.
func (n *Node) PropertyNames() []string {
	return slices.Sorted(maps.Keys(n.properties))
}

// Required returns a copy of the required property names.
func (n *Node) Required() []string { return slices.Clone(n.required) }

// AdditionalProperties reports the additionalProperties flag and whether it is set.
func (n *Node) AdditionalProperties() (allowed, set bool) {
	if n.additionalProperties == nil {
		return false, false
	}
	return *n.additionalProperties, true
}

// clone returns a deep copy so that every parent owns its children.
func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.enum = slices.Clone(n.enum)
	out.required = slices.Clone(n.required)
	if n.properties != nil {
		out.properties = make(map[string]*Node, len(n.properties))
		for k, v := range n.properties {
			out.properties[k] = v.clone()
		}
	}
	out.items = n.items.clone()
	return &out
}

// MarshalJSON writes type, description and enum first, then the constraints of
// the node's kind in a fixed order.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	w := &objectWriter{}
	w.field("type", n.typ)
	writeOptional(w, "description", n.description)
	if len(n.enum) > 0 {
		w.field("enum", n.enum)
	}

	switch n.typ {
	case TypeString:
		writeOptional(w, "minLength", n.minLength)
		writeOptional(w, "maxLength", n.maxLength)
		writeOptional(w, "pattern", n.pattern)
		writeOptional(w, "format", n.format)
	case TypeNumber, TypeInteger:
		writeOptional(w, "minimum", n.minimum)
		writeOptional(w, "maximum", n.maximum)
		writeOptional(w, "exclusiveMinimum", n.exclusiveMinimum)
		writeOptional(w, "exclusiveMaximum", n.exclusiveMaximum)
		writeOptional(w, "multipleOf", n.multipleOf)
	case TypeObject:
		if n.properties != nil {
			w.field("properties", n.properties)
		}
		if n.required != nil {
			w.field("required", n.required)
		}
		writeOptional(w, "additionalProperties", n.additionalProperties)
		writeOptional(w, "minProperties", n.minProperties)
		writeOptional(w, "maxProperties", n.maxProperties)
	case TypeArray:
		if n.items != nil {
			w.field("items", n.items)
		}
		writeOptional(w, "minItems", n.minItems)
		writeOptional(w, "maxItems", n.maxItems)
		writeOptional(w, "uniqueItems", n.uniqueItems)
	}
	return w.bytes()
}

// objectWriter emits a JSON object with keys in insertion order.
type objectWriter struct {
	buf bytes.Buffer
	err error
}

func (w *objectWriter) field(key string, v any) {
	if w.err != nil {
		return
	}
	val, err := json.Marshal(v)
	if err != nil {
		w.err = err
		return
	}
	if w.buf.Len() == 0 {
		w.buf.WriteByte('{')
	} else {
		w.buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(val)
}

func (w *objectWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.buf.Len() == 0 {
		return []byte("{}"), nil
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

func writeOptional[T any](w *objectWriter, key string, v *T) {
	if v != nil {
		w.field(key, *v)
	}
}
