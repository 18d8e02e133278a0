package openrouter

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidResponse is returned when the transport yields no HTTP response.
	ErrInvalidResponse = errors.New("openrouter: invalid response")

	// ErrMissingContent matches *MissingContentError with errors.Is.
	ErrMissingContent = errors.New("openrouter: missing message content")
)

// StatusError is a non-2xx response whose body is not an error envelope.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openrouter: invalid status code %d", e.StatusCode)
}

// APIError is a non-2xx response carrying OpenRouter's error envelope.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter: API error %d: %s", e.Code, e.Message)
}

// MissingContentError is returned by the structured pipeline when the response
// has no choices. The full response is kept for diagnostics.
type MissingContentError struct {
	Response *ChatCompletionResponse
}

func (e *MissingContentError) Error() string {
	if e.Response == nil {
		return ErrMissingContent.Error()
	}
	return fmt.Sprintf("%s (response %s)", ErrMissingContent, e.Response.ID)
}

func (e *MissingContentError) Is(target error) bool { return target == ErrMissingContent }

// InvalidResponseDataError is returned when message content cannot be turned
// into bytes for decoding.
type InvalidResponseDataError struct {
	Reason string
}

func (e *InvalidResponseDataError) Error() string {
	return "openrouter: invalid response data: " + e.Reason
}

// DecodingError wraps a failure to decode the assistant's content into the
// caller's type. Data holds the raw content.
type DecodingError struct {
	Err  error
	Data []byte
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("openrouter: decode structured content: %v", e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// AsAPIError reports whether err is or wraps an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// AsStatusError reports whether err is or wraps a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	ok := errors.As(err, &statusErr)
	return statusErr, ok
}

// checkStatus maps a non-2xx response to *APIError when body is an error
// envelope and *StatusError otherwise.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if details, ok := decodeErrorResponse(body); ok {
		return &APIError{StatusCode: statusCode, Code: details.Code, Message: details.Message}
	}
	return &StatusError{StatusCode: statusCode}
}

// decodeErrorResponse succeeds only when both code and message are present.
func decodeErrorResponse(body []byte) (ErrorDetails, bool) {
	var envelope struct {
		Error *struct {
			Code    *int    `json:"code"`
			Message *string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ErrorDetails{}, false
	}
	if envelope.Error == nil || envelope.Error.Code == nil || envelope.Error.Message == nil {
		return ErrorDetails{}, false
	}
	return ErrorDetails{Code: *envelope.Error.Code, Message: *envelope.Error.Message}, true
}
