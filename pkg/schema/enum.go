package schema

import (
	"fmt"
	"math"
	"reflect"
	"slices"
)

// Scalar is the set of backing types an enumeration may be declared over.
type Scalar interface {
	~string | ~bool | ~float32 | ~float64 |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Enumeration returns a copy of base restricted to values, in order. base must
// be a string, integer or number node; any other kind is a programming error and
// panics.
func Enumeration(base *Node, values ...Value) *Node {
	switch base.typ {
	case TypeString, TypeInteger, TypeNumber:
	default:
		panic(fmt.Sprintf("schema: enumeration over %s values is not supported", base.typ))
	}
	n := base.clone()
	n.enum = slices.Clone(values)
	return n
}

// EnumOf builds the schema of an enumeration whose cases are listed in
// declaration order. The node kind follows the backing type, so a ~string enum
// yields a string node and a ~int enum an integer node. Boolean-backed
// enumerations, and unsigned cases above math.MaxInt64, panic.
func EnumOf[T Scalar](description string, cases ...T) *Node {
	base := scalarNode(reflect.TypeFor[T]().Kind())
	if description != "" {
		base.description = &description
	}
	values := make([]Value, 0, len(cases))
	for _, c := range cases {
		values = append(values, scalarValue(reflect.ValueOf(c)))
	}
	return Enumeration(base, values...)
}

func scalarNode(k reflect.Kind) *Node {
	switch k {
	case reflect.String:
		return String()
	case reflect.Bool:
		return Boolean()
	case reflect.Float32, reflect.Float64:
		return Number()
	default:
		return Integer()
	}
}

func scalarValue(v reflect.Value) Value {
	switch v.Kind() {
	case reflect.String:
		return StringValue(v.String())
	case reflect.Bool:
		return BooleanValue(v.Bool())
	case reflect.Float32, reflect.Float64:
		return NumberValue(v.Float())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			panic(fmt.Sprintf("schema: enumeration case %d overflows int64", u))
		}
		return IntegerValue(int64(u))
	default:
		return IntegerValue(v.Int())
	}
}
