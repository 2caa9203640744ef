package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Doer abstracts the network call so tests can inject a fake transport.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxErrorBodySize caps error body reads to prevent unbounded allocation
// from rogue responses.
const maxErrorBodySize int64 = 10 * 1024 * 1024

// post runs the retry-aware request state machine for one logical call and
// returns the raw 2xx response. The caller materializes the body (JSON decode
// for non-streaming calls, ChatStream for streaming calls) and must invoke
// the returned cancel to release the timeout timer once the body is consumed.
//
// Retries apply only while establishing a response: a streaming call that has
// handed its body to the consumer is never retried here.
func (c *Client) post(ctx context.Context, path string, payload any, extra http.Header, timeout time.Duration, stream bool) (*http.Response, context.CancelFunc, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, newDecodeError(err)
	}

	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	opCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	requestID := uuid.NewString()
	url := c.config.BaseURL + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(opCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			cancel()
			return nil, nil, newNetworkError(err)
		}
		c.setHeaders(req, extra, requestID, stream)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			classified := classifyTransport(ctx, opCtx, err, timeout)

			// Connectivity failures are retryable only for non-streaming
			// calls; cancellation and timeouts surface immediately.
			if errors.Is(classified, ErrNetwork) && !stream && isConnectivityFailure(err) {
				if delay, ok := c.retry.NextDelay(attempt, classified); ok {
					if serr := sleep(opCtx, delay); serr != nil {
						cancel()
						return nil, nil, classifyTransport(ctx, opCtx, serr, timeout)
					}
					continue
				}
			}
			cancel()
			return nil, nil, classified
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, cancel, nil
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()

		apiErr := Classify(resp.StatusCode, resp.Header, respBody)

		if isRetryableStatus(resp.StatusCode) {
			if delay, ok := c.retry.NextDelay(attempt, apiErr); ok {
				if serr := sleep(opCtx, delay); serr != nil {
					cancel()
					return nil, nil, classifyTransport(ctx, opCtx, serr, timeout)
				}
				continue
			}
		}

		cancel()
		return nil, nil, apiErr
	}
}

// postJSON runs post and decodes the 2xx body into out, releasing the timer
// and connection on every path. It returns the response headers so callers
// can surface rate-limit metadata.
func (c *Client) postJSON(ctx context.Context, path string, payload any, extra http.Header, timeout time.Duration, out any) (http.Header, error) {
	resp, cancel, err := c.post(ctx, path, payload, extra, timeout, false)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return resp.Header, &APIError{Message: "request aborted by caller", Err: ErrAborted}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return resp.Header, &APIError{
				Message: fmt.Sprintf("request timed out after %s", timeout),
				Err:     ErrTimeout,
			}
		}
		return resp.Header, newNetworkError(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.Header, newDecodeError(err)
	}
	return resp.Header, nil
}

// setHeaders applies the merged header set: client defaults, then per-call
// overrides, then the fixed protocol headers.
func (c *Client) setHeaders(req *http.Request, extra http.Header, requestID string, stream bool) {
	for key, values := range c.config.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, values := range extra {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey.Expose())
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

// classifyTransport distinguishes which trigger ended a transport-level
// failure: the caller's context (abort), the internal timer (timeout), or
// the network itself (connection).
func classifyTransport(callerCtx, opCtx context.Context, err error, timeout time.Duration) *APIError {
	if callerCtx.Err() != nil {
		return &APIError{Message: "request aborted by caller", Err: ErrAborted}
	}
	if opCtx.Err() == context.DeadlineExceeded {
		return &APIError{
			Message: fmt.Sprintf("request timed out after %s", timeout),
			Err:     ErrTimeout,
		}
	}
	return newNetworkError(err)
}

// connectivityPatterns are transport failure messages treated as transient.
var connectivityPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"unexpected EOF",
	"EOF",
}

// isConnectivityFailure reports whether a transport error looks like a
// transient network fault worth re-attempting.
func isConnectivityFailure(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := err.Error()
	for _, p := range connectivityPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// sleep waits for d, respecting cancellation, releasing the timer on exit.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
