package core

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy determines retry behavior for failed requests.
type RetryPolicy interface {
	// NextDelay returns the delay before the next retry attempt and whether to
	// retry at all. attempt starts at 0 for the first retry after the initial
	// failure.
	NextDelay(attempt int, err error) (delay time.Duration, ok bool)
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Initial delay before first retry (default: 1s)
	MaxDelay   time.Duration // Ceiling for any delay, including retry-after hints (default: 30s)
	Jitter     float64       // Fraction of the delay added as random jitter, 0.0-1.0 (default: 0.1)
}

// DefaultRetryPolicy returns a retry policy with sensible defaults:
// exponential backoff with up to 10% jitter, max 3 retries, 30s delay ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     0.1,
	})
}

// NewRetryPolicy creates a retry policy with the given configuration.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0.1
	}
	return &exponentialBackoff{cfg: cfg}
}

type exponentialBackoff struct {
	cfg RetryConfig
}

func (e *exponentialBackoff) NextDelay(attempt int, err error) (time.Duration, bool) {
	if attempt >= e.cfg.MaxRetries {
		return 0, false
	}
	if !isRetryable(err) {
		return 0, false
	}

	// A server-supplied retry-after hint wins over the exponential formula,
	// capped at the same ceiling.
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		delay := apiErr.RetryAfter
		if delay > e.cfg.MaxDelay {
			delay = e.cfg.MaxDelay
		}
		return delay, true
	}

	// baseDelay * 2^attempt, plus up to Jitter fraction of random headroom.
	delay := float64(e.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if e.cfg.Jitter > 0 {
		delay += rand.Float64() * e.cfg.Jitter * delay
	}
	if delay > float64(e.cfg.MaxDelay) {
		delay = float64(e.cfg.MaxDelay)
	}

	return time.Duration(delay), true
}

// retryableStatuses is the fixed set of HTTP statuses treated as transient.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// isRetryableStatus checks if an HTTP status code indicates a retryable error.
func isRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation, timeouts and mid-stream failures are never retried.
	if errors.Is(err, ErrAborted) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrStream) {
		return false
	}
	if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrValidation) || errors.Is(err, ErrDecode) {
		return false
	}

	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.Status)
	}

	// Unknown errors are not retried by default.
	return false
}
