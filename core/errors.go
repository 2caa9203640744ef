package core

import (
	"errors"
	"fmt"
	"time"
)

// APIError carries the full context of a failed request to the Raven service.
// The Err field holds one of the sentinel errors below, so callers can match
// error classes with errors.Is while still reading status and body here.
type APIError struct {
	Status     int           // HTTP status, 0 for transport-level failures
	Code       string        // machine-readable code from the error body, if any
	Message    string        // human-readable description
	RequestID  string        // x-request-id echoed by the service, if any
	RetryAfter time.Duration // parsed retry-after hint, 0 when absent
	Body       []byte        // raw error body for caller inspection
	Err        error         // sentinel classifying the error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		if e.RequestID != "" {
			return fmt.Sprintf("raven: %s (status=%d, code=%s, request_id=%s)",
				e.Message, e.Status, e.Code, e.RequestID)
		}
		return fmt.Sprintf("raven: %s (status=%d, code=%s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("raven: %s", e.Message)
}

// Unwrap returns the classification sentinel for error chaining.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Sentinel errors for classification.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrAPI            = errors.New("api error")
	ErrTimeout        = errors.New("request timed out")
	ErrAborted        = errors.New("request aborted")
	ErrNetwork        = errors.New("network error")
	ErrStream         = errors.New("stream error")
	ErrContentFilter  = errors.New("content filtered")
	ErrValidation     = errors.New("invalid request")
	ErrDecode         = errors.New("decode error")
)

// Validation errors with actionable guidance. All wrap ErrValidation and are
// raised before any network activity.
var (
	ErrModelRequired = fmt.Errorf("model required: pass a model ID to Client.Chat() or set WithDefaultModel: %w", ErrValidation)
	ErrNoMessages    = fmt.Errorf("no messages: add at least one message using .System(), .User(), or .Assistant(): %w", ErrValidation)
	ErrBadRole       = fmt.Errorf("unknown message role: use system, user, or assistant: %w", ErrValidation)
	ErrEmptyContent  = fmt.Errorf("empty message content: %w", ErrValidation)
	ErrEmptyPrompt   = fmt.Errorf("empty prompt: image generation requires a non-empty prompt: %w", ErrValidation)
)

// newNetworkError wraps a transport-level failure.
func newNetworkError(err error) *APIError {
	return &APIError{Message: err.Error(), Err: ErrNetwork}
}

// newDecodeError wraps a JSON decode failure.
func newDecodeError(err error) *APIError {
	return &APIError{Message: err.Error(), Err: ErrDecode}
}

// newStreamError wraps a failure while reading an established response stream.
func newStreamError(err error) *APIError {
	return &APIError{Message: err.Error(), Err: ErrStream}
}
