package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/abdhe/openrouter-go/pkg/metrics"
	"github.com/abdhe/openrouter-go/pkg/openrouter"
	"github.com/abdhe/openrouter-go/pkg/schema"
)

// ModelCatalog serves the model list. *cache.Catalog and *openrouter.Client
// both satisfy it.
type ModelCatalog interface {
	Models(ctx context.Context) (*openrouter.ListModelsResponse, error)
}

// clientCatalog adapts a client without a cache in front of it.
type clientCatalog struct{ c *openrouter.Client }

func (c clientCatalog) Models(ctx context.Context) (*openrouter.ListModelsResponse, error) {
	return c.c.ListModels(ctx)
}

// Handler implements GatewayServer.
type Handler struct {
	apiKey         string
	clientOpts     []openrouter.Option
	client         *openrouter.Client
	catalog        ModelCatalog
	requestTimeout time.Duration
}

var _ GatewayServer = (*Handler)(nil)

// Config holds the handler configuration.
type Config struct {
	APIKey         string
	ClientOptions  []openrouter.Option
	Catalog        ModelCatalog // optional; defaults to the uncached API
	RequestTimeout time.Duration
}

// NewHandler creates a new gateway handler.
func NewHandler(cfg Config) *Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	h := &Handler{
		apiKey:         cfg.APIKey,
		clientOpts:     cfg.ClientOptions,
		catalog:        cfg.Catalog,
		requestTimeout: cfg.RequestTimeout,
	}
	h.client = h.newClient()
	if h.catalog == nil {
		h.catalog = clientCatalog{h.client}
	}
	return h
}

// newClient returns a fresh client. Each gRPC stream gets its own because a
// client runs a single streaming session at a time.
func (h *Handler) newClient() *openrouter.Client {
	return openrouter.New(h.apiKey, h.clientOpts...)
}

// ChatCompletion handles a unary completion. The request Struct is an
// OpenRouter chat completion body.
func (h *Handler) ChatCompletion(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	req, err := decodeRequest(in)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	metrics.RecordTokens(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return encodeStruct(resp)
}

// StructuredCompletion handles {"request": {...}, "name": "...", "schema": {...}}
// and returns the decoded object produced by the model.
func (h *Handler) StructuredCompletion(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	fields := in.GetFields()
	req, err := decodeRequest(fields["request"].GetStructValue())
	if err != nil {
		return nil, err
	}
	name := fields["name"].GetStringValue()
	if name == "" {
		name = "response"
	}
	rawSchema := fields["schema"].GetStructValue()
	if rawSchema == nil {
		return nil, status.Error(codes.InvalidArgument, "schema is required")
	}
	data, err := protojson.Marshal(rawSchema)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "schema: %v", err)
	}
	root, err := schema.Parse(data)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "schema: %v", err)
	}

	var out map[string]any
	if err := h.client.StructuredCompletionInto(ctx, req, name, root, &out); err != nil {
		return nil, toStatus(err)
	}
	result, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return result, nil
}

// StreamChatCompletion relays each OpenRouter chunk as one Struct.
func (h *Handler) StreamChatCompletion(in *structpb.Struct, stream ChunkStream) error {
	ctx, cancel := context.WithTimeout(stream.Context(), h.requestTimeout)
	defer cancel()

	req, err := decodeRequest(in)
	if err != nil {
		return err
	}

	client := h.newClient()
	defer client.StopStreaming()

	events, err := client.StreamChatCompletion(ctx, req)
	if err != nil {
		return toStatus(err)
	}

	var usage *openrouter.Usage
	for ev := range events {
		if ev.Err != nil {
			return toStatus(ev.Err)
		}
		if ev.Chunk.Usage != nil {
			usage = ev.Chunk.Usage
		}
		msg, err := encodeStruct(ev.Chunk)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return fmt.Errorf("stream send: %w", err)
		}
		metrics.StreamChunksTotal.WithLabelValues(req.Model).Inc()
	}
	// The channel also closes quietly when ctx ends.
	if err := ctx.Err(); err != nil {
		return toStatus(err)
	}

	if usage != nil {
		metrics.RecordTokens(req.Model, usage.PromptTokens, usage.CompletionTokens)
	}
	return nil
}

// ListModels returns the catalog, served from cache when one is configured.
func (h *Handler) ListModels(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp, err := h.catalog.Models(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeStruct(resp)
}

// GetCredits returns the account balance with an added "outstanding" field.
func (h *Handler) GetCredits(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp, err := h.client.Credits(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeStruct(map[string]any{
		"data": map[string]any{
			"total_credits": resp.Data.TotalCredits,
			"total_usage":   resp.Data.TotalUsage,
			"outstanding":   resp.Data.Outstanding(),
		},
	})
}

// ---------------------------------------------------------------------------
// Conversion helpers
// ---------------------------------------------------------------------------

func decodeRequest(in *structpb.Struct) (openrouter.ChatCompletionRequest, error) {
	var req openrouter.ChatCompletionRequest
	if in == nil {
		return req, status.Error(codes.InvalidArgument, "request is required")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return req, status.Errorf(codes.InvalidArgument, "request: %v", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, status.Errorf(codes.InvalidArgument, "request: %v", err)
	}
	if req.Model == "" {
		return req, status.Error(codes.InvalidArgument, "request: model is required")
	}
	return req, nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

// toStatus maps client errors onto gRPC status codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		apiErr     *openrouter.APIError
		statusErr  *openrouter.StatusError
		decodeErr  *openrouter.DecodingError
		invalidErr *openrouter.InvalidResponseDataError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &apiErr):
		return status.Error(httpCode(apiErr.StatusCode), apiErr.Message)
	case errors.As(err, &statusErr):
		return status.Error(httpCode(statusErr.StatusCode), err.Error())
	case errors.As(err, &decodeErr), errors.As(err, &invalidErr):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, openrouter.ErrMissingContent):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, schema.ErrUnsupportedType):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		log.Printf("[gateway] upstream error: %v", err)
		return status.Error(codes.Unavailable, err.Error())
	}
}

func httpCode(statusCode int) codes.Code {
	switch statusCode {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return codes.Unavailable
	default:
		if statusCode >= 500 {
			return codes.Internal
		}
		return codes.Unknown
	}
}
