package schema

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType is returned for types with no schema mapping, including
	// plain structs that neither implement Describer nor Composer.
	ErrUnsupportedType = errors.New("schema: unsupported type")

	// ErrRecursiveType is returned when a type is reached again while its own
	// schema is being derived.
	ErrRecursiveType = errors.New("schema: recursive type")
)

// Describer is implemented by types that supply their own schema. Record types
// build their properties and required list here.
type Describer interface {
	JSONSchema() *Node
}

// Composer is implemented by types whose schema embeds other derived types.
// Derivations made through d share its recursion guard, so a type that
// contains itself fails with ErrRecursiveType instead of looping.
type Composer interface {
	ComposeJSONSchema(d *Deriver) (*Node, error)
}

var (
	describerType = reflect.TypeFor[Describer]()
	composerType  = reflect.TypeFor[Composer]()
	timeType      = reflect.TypeFor[time.Time]()
	uuidType      = reflect.TypeFor[uuid.UUID]()
	urlType       = reflect.TypeFor[url.URL]()
)

// Derive returns the schema for T.
func Derive[T any]() (*Node, error) {
	return NewDeriver().Derive(reflect.TypeFor[T]())
}

// MustDerive is like Derive but panics on error.
func MustDerive[T any]() *Node {
	n, err := Derive[T]()
	if err != nil {
		panic(err)
	}
	return n
}

// DeriveType returns the schema for t.
func DeriveType(t reflect.Type) (*Node, error) {
	return NewDeriver().Derive(t)
}

// DeriveWith derives T through d, sharing its recursion guard. It is meant to
// be called from ComposeJSONSchema.
func DeriveWith[T any](d *Deriver) (*Node, error) {
	return d.Derive(reflect.TypeFor[T]())
}

// Deriver maps Go types to schema nodes. It is not safe for concurrent use; each
// top-level derivation gets its own.
type Deriver struct {
	visiting map[reflect.Type]bool
}

func NewDeriver() *Deriver {
	return &Deriver{visiting: make(map[reflect.Type]bool)}
}

// Derive returns the schema for t.
func (d *Deriver) Derive(t reflect.Type) (*Node, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}
	if d.visiting[t] {
		return nil, fmt.Errorf("%w: %s", ErrRecursiveType, t)
	}
	d.visiting[t] = true
	defer delete(d.visiting, t)

	if n, ok, err := d.custom(t); ok {
		return n, err
	}

	switch t {
	case timeType:
		return String(Format("date-time")), nil
	case uuidType:
		return String(Format("uuid")), nil
	case urlType:
		return String(Format("uri")), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return Boolean(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Integer(), nil
	case reflect.Float32, reflect.Float64:
		return Number(), nil
	case reflect.String:
		return String(), nil
	case reflect.Pointer:
		// Optional values keep the element schema; presence is expressed by
		// the enclosing object's required list.
		return d.Derive(t.Elem())
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return String(Format("byte")), nil
		}
		items, err := d.Derive(t.Elem())
		if err != nil {
			return nil, err
		}
		return Array(Items(items)), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedType, t.Key())
		}
		// Value constraints are not propagated.
		if _, err := d.Derive(t.Elem()); err != nil {
			return nil, err
		}
		return Object(AdditionalProperties(true)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

// custom asks t for its own schema when it implements Composer or Describer.
func (d *Deriver) custom(t reflect.Type) (*Node, bool, error) {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return nil, false, nil
	}
	recv, ok := receiver(t, composerType)
	if ok {
		n, err := recv.Interface().(Composer).ComposeJSONSchema(d)
		if err != nil {
			return nil, true, fmt.Errorf("schema: %s: %w", t, err)
		}
		if n == nil {
			return nil, true, fmt.Errorf("%w: %s composed a nil schema", ErrUnsupportedType, t)
		}
		return n.clone(), true, nil
	}
	recv, ok = receiver(t, describerType)
	if ok {
		n := recv.Interface().(Describer).JSONSchema()
		if n == nil {
			return nil, true, fmt.Errorf("%w: %s described a nil schema", ErrUnsupportedType, t)
		}
		return n.clone(), true, nil
	}
	return nil, false, nil
}

// receiver returns a zero value of t, or of *t for pointer-receiver methods,
// that implements iface.
func receiver(t, iface reflect.Type) (reflect.Value, bool) {
	switch {
	case t.Implements(iface):
		return reflect.Zero(t), true
	case reflect.PointerTo(t).Implements(iface):
		return reflect.New(t), true
	default:
		return reflect.Value{}, false
	}
}

// TypeName is the schema name used for T's envelope.
func TypeName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "response"
	}
	return t.Name()
}
