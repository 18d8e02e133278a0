package schema

import "slices"

// StringOption configures a node built by String.
type StringOption interface{ applyString(*Node) }

// NumericOption configures a node built by Number or Integer.
type NumericOption interface{ applyNumeric(*Node) }

// BooleanOption configures a node built by Boolean.
type BooleanOption interface{ applyBoolean(*Node) }

// ObjectOption configures a node built by Object.
type ObjectOption interface{ applyObject(*Node) }

// ArrayOption configures a node built by Array.
type ArrayOption interface{ applyArray(*Node) }

// CommonOption applies to every kind.
type CommonOption func(*Node)

func (o CommonOption) applyString(n *Node)  { o(n) }
func (o CommonOption) applyNumeric(n *Node) { o(n) }
func (o CommonOption) applyBoolean(n *Node) { o(n) }
func (o CommonOption) applyObject(n *Node)  { o(n) }
func (o CommonOption) applyArray(n *Node)   { o(n) }

// EnumOption applies to string and numeric kinds.
type EnumOption func(*Node)

func (o EnumOption) applyString(n *Node)  { o(n) }
func (o EnumOption) applyNumeric(n *Node) { o(n) }

// StringConstraint applies to string nodes only.
type StringConstraint func(*Node)

func (o StringConstraint) applyString(n *Node) { o(n) }

// NumericConstraint applies to number and integer nodes only.
type NumericConstraint func(*Node)

func (o NumericConstraint) applyNumeric(n *Node) { o(n) }

// ObjectConstraint applies to object nodes only.
type ObjectConstraint func(*Node)

func (o ObjectConstraint) applyObject(n *Node) { o(n) }

// ArrayConstraint applies to array nodes only.
type ArrayConstraint func(*Node)

func (o ArrayConstraint) applyArray(n *Node) { o(n) }

func Description(text string) CommonOption {
	return func(n *Node) { n.description = &text }
}

// EnumValues restricts the node to the given literals, in order.
func EnumValues(values ...Value) EnumOption {
	return func(n *Node) { n.enum = slices.Clone(values) }
}

func MinLength(v int) StringConstraint {
	return func(n *Node) { n.minLength = &v }
}

func MaxLength(v int) StringConstraint {
	return func(n *Node) { n.maxLength = &v }
}

func Pattern(expr string) StringConstraint {
	return func(n *Node) { n.pattern = &expr }
}

// Format sets a format hint such as "date-time", "uuid" or "uri". The hint is
// emitted only; nothing here checks it.
func Format(name string) StringConstraint {
	return func(n *Node) { n.format = &name }
}

func Minimum(v float64) NumericConstraint {
	return func(n *Node) { n.minimum = &v }
}

func Maximum(v float64) NumericConstraint {
	return func(n *Node) { n.maximum = &v }
}

func ExclusiveMinimum(v float64) NumericConstraint {
	return func(n *Node) { n.exclusiveMinimum = &v }
}

func ExclusiveMaximum(v float64) NumericConstraint {
	return func(n *Node) { n.exclusiveMaximum = &v }
}

func MultipleOf(v float64) NumericConstraint {
	return func(n *Node) { n.multipleOf = &v }
}

// Property adds one named property. The child is copied.
func Property(name string, child *Node) ObjectConstraint {
	return func(n *Node) {
		if n.properties == nil {
			n.properties = make(map[string]*Node)
		}
		n.properties[name] = child.clone()
	}
}

// Properties adds every entry of props. Children are copied.
func Properties(props map[string]*Node) ObjectConstraint {
	return func(n *Node) {
		if n.properties == nil {
			n.properties = make(map[string]*Node, len(props))
		}
		for name, child := range props {
			n.properties[name] = child.clone()
		}
	}
}

// Required appends names to the required list.
func Required(names ...string) ObjectConstraint {
	return func(n *Node) { n.required = append(n.required, names...) }
}

func AdditionalProperties(allowed bool) ObjectConstraint {
	return func(n *Node) { n.additionalProperties = &allowed }
}

func MinProperties(v int) ObjectConstraint {
	return func(n *Node) { n.minProperties = &v }
}

func MaxProperties(v int) ObjectConstraint {
	return func(n *Node) { n.maxProperties = &v }
}

// Items sets the element schema. The child is copied.
func Items(child *Node) ArrayConstraint {
	return func(n *Node) { n.items = child.clone() }
}

func MinItems(v int) ArrayConstraint {
	return func(n *Node) { n.minItems = &v }
}

func MaxItems(v int) ArrayConstraint {
	return func(n *Node) { n.maxItems = &v }
}

func UniqueItems(unique bool) ArrayConstraint {
	return func(n *Node) { n.uniqueItems = &unique }
}
