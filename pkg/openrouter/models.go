package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ListModelsResponse is the body of GET /models.
type ListModelsResponse struct {
	Data []Model `json:"data"`
}

// Model describes one entry of the OpenRouter catalog.
type Model struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Created          UnixTime          `json:"created"`
	Description      string            `json:"description"`
	ContextLength    int               `json:"context_length"`
	Architecture     Architecture      `json:"architecture"`
	TopProvider      TopProvider       `json:"top_provider"`
	Pricing          Pricing           `json:"pricing"`
	PerRequestLimits map[string]string `json:"per_request_limits,omitempty"`
}

type Architecture struct {
	Modality  string `json:"modality"`
	Tokenizer string `json:"tokenizer"`
}

type TopProvider struct {
	ContextLength       *int `json:"context_length,omitempty"`
	MaxCompletionTokens *int `json:"max_completion_tokens,omitempty"`
	IsModerated         bool `json:"is_moderated"`
}

// Pricing holds per-token and per-request prices in USD. OpenRouter sends them
// as decimal strings; numeric literals are accepted too. Optional prices that
// are absent, null or empty are left invalid.
type Pricing struct {
	Prompt            decimal.Decimal
	Completion        decimal.Decimal
	Image             decimal.NullDecimal
	Request           decimal.NullDecimal
	InputCacheRead    decimal.NullDecimal
	InputCacheWrite   decimal.NullDecimal
	WebSearch         decimal.NullDecimal
	InternalReasoning decimal.NullDecimal
}

type pricingJSON struct {
	Prompt            string  `json:"prompt"`
	Completion        string  `json:"completion"`
	Image             *string `json:"image,omitempty"`
	Request           *string `json:"request,omitempty"`
	InputCacheRead    *string `json:"input_cache_read,omitempty"`
	InputCacheWrite   *string `json:"input_cache_write,omitempty"`
	WebSearch         *string `json:"web_search,omitempty"`
	InternalReasoning *string `json:"internal_reasoning,omitempty"`
}

func (p Pricing) MarshalJSON() ([]byte, error) {
	return json.Marshal(pricingJSON{
		Prompt:            p.Prompt.String(),
		Completion:        p.Completion.String(),
		Image:             nullString(p.Image),
		Request:           nullString(p.Request),
		InputCacheRead:    nullString(p.InputCacheRead),
		InputCacheWrite:   nullString(p.InputCacheWrite),
		WebSearch:         nullString(p.WebSearch),
		InternalReasoning: nullString(p.InternalReasoning),
	})
}

func (p *Pricing) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("openrouter: pricing: %w", err)
	}

	var out Pricing
	var err error
	if out.Prompt, err = requiredDecimal(raw, "prompt"); err != nil {
		return err
	}
	if out.Completion, err = requiredDecimal(raw, "completion"); err != nil {
		return err
	}
	optional := []struct {
		key string
		dst *decimal.NullDecimal
	}{
		{"image", &out.Image},
		{"request", &out.Request},
		{"input_cache_read", &out.InputCacheRead},
		{"input_cache_write", &out.InputCacheWrite},
		{"web_search", &out.WebSearch},
		{"internal_reasoning", &out.InternalReasoning},
	}
	for _, o := range optional {
		if *o.dst, err = parseDecimal(o.key, raw[o.key]); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

func requiredDecimal(raw map[string]json.RawMessage, key string) (decimal.Decimal, error) {
	d, err := parseDecimal(key, raw[key])
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !d.Valid {
		return decimal.Decimal{}, fmt.Errorf("openrouter: pricing %s: missing", key)
	}
	return d.Decimal, nil
}

// parseDecimal accepts a quoted decimal string or a bare numeric literal.
func parseDecimal(key string, msg json.RawMessage) (decimal.NullDecimal, error) {
	text := strings.TrimSpace(string(msg))
	if text == "" || text == "null" {
		return decimal.NullDecimal{}, nil
	}
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(msg, &text); err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("openrouter: pricing %s: %w", key, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return decimal.NullDecimal{}, nil
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("openrouter: pricing %s: %w", key, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func nullString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

// CreditsResponse is the body of GET /credits.
type CreditsResponse struct {
	Data Credits `json:"data"`
}

// Credits are the account's purchased and used credits in USD.
type Credits struct {
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalUsage   decimal.Decimal `json:"total_usage"`
}

// Outstanding returns the credits still available.
func (c Credits) Outstanding() decimal.Decimal {
	return c.TotalCredits.Sub(c.TotalUsage)
}
