package schema

// Envelope is the named wrapper sent as response_format.json_schema.
type Envelope struct {
	Name   string `json:"name"`
	Strict bool   `json:"strict"`
	Schema *Node  `json:"schema"`
}

// NewEnvelope wraps a copy of root in a strict envelope.
func NewEnvelope(name string, root *Node) *Envelope {
	return &Envelope{Name: name, Strict: true, Schema: root.clone()}
}
