package openrouter

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/abdhe/openrouter-go/pkg/schema"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }
func ToolMessage(content string) Message      { return Message{Role: RoleTool, Content: content} }

// ProviderPreferences are OpenRouter provider routing hints.
type ProviderPreferences struct {
	Sort string `json:"sort,omitempty"`
}

type ReasoningEffort string

const (
	EffortHigh   ReasoningEffort = "high"
	EffortMedium ReasoningEffort = "medium"
	EffortLow    ReasoningEffort = "low"
)

// Reasoning configures reasoning tokens for models that support them.
type Reasoning struct {
	Effort    ReasoningEffort `json:"effort,omitempty"`
	MaxTokens *int            `json:"max_tokens,omitempty"`
	Exclude   *bool           `json:"exclude,omitempty"`
}

// ResponseFormat constrains the reply to a JSON schema.
type ResponseFormat struct {
	Type       string           `json:"type"`
	JSONSchema *schema.Envelope `json:"json_schema,omitempty"`
}

// ChatCompletionRequest is the body of POST /chat/completions. Optional
// parameters are pointers and omitted when nil.
type ChatCompletionRequest struct {
	Model             string               `json:"model"`
	Messages          []Message            `json:"messages"`
	Stream            *bool                `json:"stream,omitempty"`
	MaxTokens         *int                 `json:"max_tokens,omitempty"`
	Temperature       *float64             `json:"temperature,omitempty"`
	Seed              *int                 `json:"seed,omitempty"`
	TopP              *float64             `json:"top_p,omitempty"`
	TopK              *int                 `json:"top_k,omitempty"`
	FrequencyPenalty  *float64             `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64             `json:"presence_penalty,omitempty"`
	RepetitionPenalty *float64             `json:"repetition_penalty,omitempty"`
	LogitBias         map[string]float64   `json:"logit_bias,omitempty"`
	TopLogprobs       *int                 `json:"top_logprobs,omitempty"`
	MinP              *float64             `json:"min_p,omitempty"`
	TopA              *float64             `json:"top_a,omitempty"`
	Transforms        []string             `json:"transforms,omitempty"`
	Models            []string             `json:"models,omitempty"`
	Route             string               `json:"route,omitempty"`
	Provider          *ProviderPreferences `json:"provider,omitempty"`
	Reasoning         *Reasoning           `json:"reasoning,omitempty"`
	ResponseFormat    *ResponseFormat      `json:"response_format,omitempty"`
}

// clone copies r so that the copy can be modified without touching any value
// reachable from r.
func (r ChatCompletionRequest) clone() ChatCompletionRequest {
	out := r
	out.Messages = slices.Clone(r.Messages)
	out.LogitBias = maps.Clone(r.LogitBias)
	out.Transforms = slices.Clone(r.Transforms)
	out.Models = slices.Clone(r.Models)
	out.Stream = clonePtr(r.Stream)
	out.MaxTokens = clonePtr(r.MaxTokens)
	out.Temperature = clonePtr(r.Temperature)
	out.Seed = clonePtr(r.Seed)
	out.TopP = clonePtr(r.TopP)
	out.TopK = clonePtr(r.TopK)
	out.FrequencyPenalty = clonePtr(r.FrequencyPenalty)
	out.PresencePenalty = clonePtr(r.PresencePenalty)
	out.RepetitionPenalty = clonePtr(r.RepetitionPenalty)
	out.TopLogprobs = clonePtr(r.TopLogprobs)
	out.MinP = clonePtr(r.MinP)
	out.TopA = clonePtr(r.TopA)
	out.Provider = clonePtr(r.Provider)
	if r.Reasoning != nil {
		reasoning := *r.Reasoning
		reasoning.MaxTokens = clonePtr(r.Reasoning.MaxTokens)
		reasoning.Exclude = clonePtr(r.Reasoning.Exclude)
		out.Reasoning = &reasoning
	}
	out.ResponseFormat = clonePtr(r.ResponseFormat)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
func Bool(v bool) *bool        { return &v }

// Usage reports token counts for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the body returned by a non-streaming completion.
type ChatCompletionResponse struct {
	ID       string   `json:"id"`
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Object   string   `json:"object"`
	Created  int64    `json:"created"`
	Choices  []Choice `json:"choices"`
	Usage    Usage    `json:"usage"`
}

type Choice struct {
	Logprobs           json.RawMessage `json:"logprobs,omitempty"`
	FinishReason       string          `json:"finish_reason"`
	NativeFinishReason string          `json:"native_finish_reason"`
	Index              int             `json:"index"`
	Message            Message         `json:"message"`
}

// ChatCompletionChunk is one SSE frame of a streaming completion.
type ChatCompletionChunk struct {
	ID       string        `json:"id"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Object   string        `json:"object"`
	Created  UnixTime      `json:"created"`
	Choices  []ChunkChoice `json:"choices"`
	Usage    *Usage        `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Index              int     `json:"index"`
	Delta              Delta   `json:"delta"`
	FinishReason       *string `json:"finish_reason,omitempty"`
	NativeFinishReason *string `json:"native_finish_reason,omitempty"`
}

// Delta is the partial assistant output carried by a chunk.
type Delta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Content returns the delta text of the first choice, or "".
func (c ChatCompletionChunk) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// ErrorResponse is the structured error envelope of a non-2xx response.
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

type ErrorDetails struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
