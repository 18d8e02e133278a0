package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Parse reads a schema document into a Node.
func Parse(data []byte) (*Node, error) {
	n := new(Node)
	if err := json.Unmarshal(data, n); err != nil {
		return nil, err
	}
	return n, nil
}

type nodeJSON struct {
	Type        Type              `json:"type"`
	Description *string           `json:"description"`
	Enum        []json.RawMessage `json:"enum"`

	MinLength *int    `json:"minLength"`
	MaxLength *int    `json:"maxLength"`
	Pattern   *string `json:"pattern"`
	Format    *string `json:"format"`

	Minimum          *float64 `json:"minimum"`
	Maximum          *float64 `json:"maximum"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum"`
	MultipleOf       *float64 `json:"multipleOf"`

	Properties           map[string]*Node `json:"properties"`
	Required             []string         `json:"required"`
	AdditionalProperties *bool            `json:"additionalProperties"`
	MinProperties        *int             `json:"minProperties"`
	MaxProperties        *int             `json:"maxProperties"`

	Items       *Node `json:"items"`
	MinItems    *int  `json:"minItems"`
	MaxItems    *int  `json:"maxItems"`
	UniqueItems *bool `json:"uniqueItems"`
}

// UnmarshalJSON reads a single-typed schema node. Keywords that do not apply to
// the node's type, and keywords the package does not model, are dropped.
// Objects without additionalProperties are closed, as with Object.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	out := Node{typ: raw.Type, description: raw.Description}
	switch raw.Type {
	case TypeString:
		out.minLength, out.maxLength = raw.MinLength, raw.MaxLength
		out.pattern, out.format = raw.Pattern, raw.Format
	case TypeNumber, TypeInteger:
		out.minimum, out.maximum = raw.Minimum, raw.Maximum
		out.exclusiveMinimum, out.exclusiveMaximum = raw.ExclusiveMinimum, raw.ExclusiveMaximum
		out.multipleOf = raw.MultipleOf
	case TypeObject:
		out.properties = raw.Properties
		out.required = raw.Required
		out.additionalProperties = raw.AdditionalProperties
		if out.additionalProperties == nil {
			closed := false
			out.additionalProperties = &closed
		}
		out.minProperties, out.maxProperties = raw.MinProperties, raw.MaxProperties
	case TypeArray:
		out.items = raw.Items
		out.minItems, out.maxItems = raw.MinItems, raw.MaxItems
		out.uniqueItems = raw.UniqueItems
	case TypeBoolean:
	case "":
		return errors.New("schema: missing type")
	default:
		return fmt.Errorf("%w: schema type %q", ErrUnsupportedType, raw.Type)
	}

	for _, msg := range raw.Enum {
		v, err := parseValue(msg)
		if err != nil {
			return err
		}
		out.enum = append(out.enum, v)
	}
	*n = out
	return nil
}

func parseValue(msg json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, fmt.Errorf("schema: enum value: %w", err)
	}
	switch v := v.(type) {
	case string:
		return StringValue(v), nil
	case bool:
		return BooleanValue(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return IntegerValue(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("schema: enum value %s: %w", v, err)
		}
		return NumberValue(f), nil
	default:
		return Value{}, fmt.Errorf("schema: enum value %s is not a scalar", msg)
	}
}
