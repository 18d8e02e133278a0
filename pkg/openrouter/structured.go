package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/abdhe/openrouter-go/pkg/schema"
)

const responseFormatJSONSchema = "json_schema"

// StructuredCompletion derives T's schema, asks the model for a reply that
// conforms to it and decodes the first choice's content into a T.
//
// The caller's request is not modified; the call runs on a copy with stream
// disabled and response_format set. Failures are *APIError or *StatusError
// from the transport, *MissingContentError when there are no choices or the content is empty,
// *InvalidResponseDataError when the content is not valid UTF-8, and
// *DecodingError when it does not decode into T.
func StructuredCompletion[T any](ctx context.Context, c *Client, req ChatCompletionRequest) (T, error) {
	var out T
	root, err := schema.Derive[T]()
	if err != nil {
		return out, fmt.Errorf("openrouter: derive schema: %w", err)
	}
	err = c.StructuredCompletionInto(ctx, req, schema.TypeName(reflect.TypeFor[T]()), root, &out)
	return out, err
}

// StructuredCompletionInto is the non-generic form of StructuredCompletion for
// callers that hold a schema rather than a type. out must be a pointer.
func (c *Client) StructuredCompletionInto(ctx context.Context, req ChatCompletionRequest, name string, root *schema.Node, out any) error {
	resp, err := c.ChatCompletion(ctx, structuredRequest(req, name, root))
	if err != nil {
		return err
	}
	data, err := structuredContent(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Debug("structured content did not decode", "name", name, "error", err)
		return &DecodingError{Err: err, Data: data}
	}
	return nil
}

func structuredRequest(req ChatCompletionRequest, name string, root *schema.Node) ChatCompletionRequest {
	out := req.clone()
	out.Stream = Bool(false)
	out.ResponseFormat = &ResponseFormat{
		Type:       responseFormatJSONSchema,
		JSONSchema: schema.NewEnvelope(name, root),
	}
	return out
}

// structuredContent returns the first choice's content as bytes. No choices,
// or an empty or null content, is missing content.
func structuredContent(resp *ChatCompletionResponse) ([]byte, error) {
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &MissingContentError{Response: resp}
	}
	content := resp.Choices[0].Message.Content
	if !utf8.ValidString(content) {
		return nil, &InvalidResponseDataError{Reason: "content is not valid UTF-8"}
	}
	return []byte(content), nil
}
