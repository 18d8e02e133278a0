// Package openrouter is a client for the OpenRouter chat completion API.
//
// Besides plain completions and catalog lookups it offers a structured
// pipeline, which attaches a JSON schema to the request and decodes the reply
// into a Go value, and a streaming session that delivers server-sent chunks
// over a channel. A Client runs at most one stream at a time: starting a new
// one, or calling StopStreaming, cancels the previous stream.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the public OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	endpointChatCompletions = "/chat/completions"
	endpointModels          = "/models"
	endpointCredits         = "/credits"
)

// Doer sends an HTTP request. *http.Client satisfies it; tests substitute
// their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the OpenRouter API. It is safe for concurrent use.
type Client struct {
	doer   Doer
	logger *slog.Logger

	mu      sync.Mutex
	apiKey  string
	baseURL string
	headers http.Header

	stream    *streamSession
	streamSeq uint64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the transport used for every request.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHeader adds a header to every request, such as HTTP-Referer or X-Title
// for OpenRouter app attribution.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// New creates a client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		doer:    http.DefaultClient,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAPIKey replaces the key used by subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Unary calls
// ---------------------------------------------------------------------------

// ChatCompletion sends req as given and returns the decoded response.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	var resp ChatCompletionResponse
	if err := c.do(ctx, http.MethodPost, endpointChatCompletions, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListModels returns the model catalog.
func (c *Client) ListModels(ctx context.Context) (*ListModelsResponse, error) {
	var resp ListModelsResponse
	if err := c.do(ctx, http.MethodGet, endpointModels, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Credits returns the account's credit balance.
func (c *Client) Credits(ctx context.Context) (*CreditsResponse, error) {
	var resp CreditsResponse
	if err := c.do(ctx, http.MethodGet, endpointCredits, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	httpReq, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	httpResp, err := c.doer.Do(httpReq)
	if err != nil {
		return fmt.Errorf("openrouter: %s %s: %w", method, path, err)
	}
	if httpResp == nil {
		return ErrInvalidResponse
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("openrouter: read %s response: %w", path, err)
	}
	c.logger.Debug("openrouter request",
		"method", method,
		"path", path,
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
	)

	if err := checkStatus(httpResp.StatusCode, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("openrouter: decode %s response: %w", path, err)
	}
	return nil
}

// newRequest builds an authenticated request. A nil body sends no payload.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	c.mu.Lock()
	apiKey, baseURL, headers := c.apiKey, c.baseURL, c.headers.Clone()
	c.mu.Unlock()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("openrouter: marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header[k] = v
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	return httpReq, nil
}
