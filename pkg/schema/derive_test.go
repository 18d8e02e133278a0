package schema

import (
	"encoding/json"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskStatus string

const (
	taskPending    taskStatus = "PENDING"
	taskProcessing taskStatus = "PROCESSING"
	taskCompleted  taskStatus = "COMPLETED"
	taskFailed     taskStatus = "FAILED"
)

func (taskStatus) JSONSchema() *Node {
	return EnumOf("Possible states of a task.", taskPending, taskProcessing, taskCompleted, taskFailed)
}

type weather struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Unit        string  `json:"unit"`
}

func (weather) JSONSchema() *Node {
	return Object(
		Description("Weather information for a location"),
		Property("location", String(Description("The city and state, e.g. San Francisco, CA"))),
		Property("temperature", Number(Description("The temperature in the specified unit"))),
		Property("unit", Enum("The unit for the temperature", StringValue("celsius"), StringValue("fahrenheit"))),
		Required("location", "temperature", "unit"),
	)
}

type pointerDescribed struct{}

func (*pointerDescribed) JSONSchema() *Node { return Boolean(Description("pointer receiver")) }

type selfList []selfList

type category struct {
	Name     string
	Children []category
}

func (category) ComposeJSONSchema(d *Deriver) (*Node, error) {
	children, err := DeriveWith[[]category](d)
	if err != nil {
		return nil, err
	}
	return Object(Property("name", String()), Property("children", children)), nil
}

type priority int

type review struct {
	Tags     []string
	Priority priority
	Reviewed *time.Time
}

func (review) ComposeJSONSchema(d *Deriver) (*Node, error) {
	tags, err := DeriveWith[[]string](d)
	if err != nil {
		return nil, err
	}
	reviewed, err := DeriveWith[*time.Time](d)
	if err != nil {
		return nil, err
	}
	return Object(
		Property("tags", tags),
		Property("priority", EnumOf("", priority(1), priority(2), priority(3))),
		Property("reviewed", reviewed),
		Required("tags", "priority"),
	), nil
}

func TestDerive_Primitives(t *testing.T) {
	cases := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeFor[int](), `{"type":"integer"}`},
		{reflect.TypeFor[uint16](), `{"type":"integer"}`},
		{reflect.TypeFor[float32](), `{"type":"number"}`},
		{reflect.TypeFor[float64](), `{"type":"number"}`},
		{reflect.TypeFor[bool](), `{"type":"boolean"}`},
		{reflect.TypeFor[string](), `{"type":"string"}`},
		{reflect.TypeFor[time.Time](), `{"type":"string","format":"date-time"}`},
		{reflect.TypeFor[uuid.UUID](), `{"type":"string","format":"uuid"}`},
		{reflect.TypeFor[url.URL](), `{"type":"string","format":"uri"}`},
		{reflect.TypeFor[*string](), `{"type":"string"}`},
		{reflect.TypeFor[[]byte](), `{"type":"string","format":"byte"}`},
		{reflect.TypeFor[[]float64](), `{"type":"array","items":{"type":"number"}}`},
		{reflect.TypeFor[[3]int](), `{"type":"array","items":{"type":"integer"}}`},
		{reflect.TypeFor[map[string]int](), `{"type":"object","additionalProperties":true}`},
		{reflect.TypeFor[*pointerDescribed](), `{"type":"boolean","description":"pointer receiver"}`},
		{reflect.TypeFor[pointerDescribed](), `{"type":"boolean","description":"pointer receiver"}`},
	}
	for _, tc := range cases {
		t.Run(tc.typ.String(), func(t *testing.T) {
			n, err := DeriveType(tc.typ)
			require.NoError(t, err)
			assert.Equal(t, tc.want, marshal(t, n))
		})
	}
}

func TestDerive_Unsupported(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeFor[struct{ A int }](),
		reflect.TypeFor[map[int]string](),
		reflect.TypeFor[chan int](),
		reflect.TypeFor[any](),
		reflect.TypeFor[map[string]any](),
	} {
		_, err := DeriveType(typ)
		assert.ErrorIs(t, err, ErrUnsupportedType, typ.String())
	}
}

func TestDerive_EnumerationInDeclarationOrder(t *testing.T) {
	n, err := Derive[taskStatus]()
	require.NoError(t, err)

	assert.Equal(t, TypeString, n.Type())
	var got []any
	for _, v := range n.EnumValues() {
		got = append(got, v.Interface())
	}
	assert.Equal(t, []any{"PENDING", "PROCESSING", "COMPLETED", "FAILED"}, got)
	assert.Equal(t,
		`{"type":"string","description":"Possible states of a task.","enum":["PENDING","PROCESSING","COMPLETED","FAILED"]}`,
		marshal(t, n))
}

func TestEnumOf_BackingKinds(t *testing.T) {
	assert.Equal(t, `{"type":"integer","enum":[1,2]}`, marshal(t, EnumOf("", priority(1), priority(2))))
	assert.Equal(t, `{"type":"number","enum":[0.5,1.5]}`, marshal(t, EnumOf("", 0.5, 1.5)))

	assert.Panics(t, func() { EnumOf("", true, false) })
	assert.Panics(t, func() { Enumeration(Object(), StringValue("x")) })

	assert.Equal(t, `{"type":"integer","enum":[7,9223372036854775807]}`, marshal(t, EnumOf("", uint64(7), uint64(1<<63-1))))
	assert.Panics(t, func() { EnumOf("", uint64(1<<63)) })
}

func TestDerive_ObjectRoundTrip(t *testing.T) {
	n, err := Derive[weather]()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal([]byte(marshal(t, n)), &generic))

	assert.ElementsMatch(t, []string{"type", "description", "properties", "required", "additionalProperties"}, keys(generic))
	props := generic["properties"].(map[string]any)

	location := props["location"].(map[string]any)
	assert.ElementsMatch(t, []string{"type", "description"}, keys(location))
	assert.NotContains(t, location, "minimum")

	temperature := props["temperature"].(map[string]any)
	assert.Equal(t, "number", temperature["type"])
	assert.NotContains(t, temperature, "minLength")

	unit := props["unit"].(map[string]any)
	assert.ElementsMatch(t, []string{"type", "description", "enum"}, keys(unit))
	assert.Equal(t, []any{"location", "temperature", "unit"}, generic["required"])
}

func TestDerive_Composer(t *testing.T) {
	n, err := Derive[review]()
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"object","properties":{"priority":{"type":"integer","enum":[1,2,3]},"reviewed":{"type":"string","format":"date-time"},"tags":{"type":"array","items":{"type":"string"}}},"required":["tags","priority"],"additionalProperties":false}`,
		marshal(t, n))
}

func TestDerive_RejectsRecursion(t *testing.T) {
	_, err := Derive[selfList]()
	assert.ErrorIs(t, err, ErrRecursiveType)

	_, err = Derive[category]()
	assert.ErrorIs(t, err, ErrRecursiveType)

	_, err = Derive[map[string]selfList]()
	assert.ErrorIs(t, err, ErrRecursiveType)
}

func TestDerive_SiblingsAreNotRecursion(t *testing.T) {
	n, err := Derive[[][]string]()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"array","items":{"type":"array","items":{"type":"string"}}}`, marshal(t, n))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "weather", TypeName(reflect.TypeFor[weather]()))
	assert.Equal(t, "weather", TypeName(reflect.TypeFor[*weather]()))
	assert.Equal(t, "response", TypeName(reflect.TypeFor[map[string]int]()))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
