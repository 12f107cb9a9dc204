package intelligence

import (
	"context"
	"errors"
	"strings"
)

var ErrMissingCredential = errors.New("model API key not configured. Set GEMINI_API_KEY in the environment or config.yaml")

const (
	CategoryCredential = "invalid_credential"
	CategoryRateLimit  = "rate_limited"
	CategoryModel      = "model_unavailable"
	CategoryTimeout    = "timeout"
	CategoryCanceled   = "canceled"
	CategoryUnknown    = "unknown"
)

// UpstreamError is a model failure translated into a user-facing message.
// Message never carries stack traces or provider internals beyond the raw
// error text.
type UpstreamError struct {
	Category string
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string { return e.Message }

func (e *UpstreamError) Unwrap() error { return e.Err }

// CategorizeError maps an upstream failure to its user-facing form.
func CategorizeError(err error) *UpstreamError {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}

	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &UpstreamError{Category: CategoryTimeout, Message: "The assistant took too long to respond. Please try again.", Err: err}
	case errors.Is(err, context.Canceled):
		return &UpstreamError{Category: CategoryCanceled, Message: "Request cancelled.", Err: err}
	case strings.Contains(msg, "API key"):
		return &UpstreamError{Category: CategoryCredential, Message: "Invalid model API key. Please check your configuration.", Err: err}
	case strings.Contains(strings.ToLower(msg), "rate limit"):
		return &UpstreamError{Category: CategoryRateLimit, Message: "Rate limit exceeded. Please wait a moment and try again.", Err: err}
	case strings.Contains(msg, "model"):
		return &UpstreamError{Category: CategoryModel, Message: "Model not available. Please check your provider account.", Err: err}
	default:
		return &UpstreamError{Category: CategoryUnknown, Message: "Error: " + msg, Err: err}
	}
}
