package core

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// errorEnvelope covers the error body shapes the service is known to return:
// {"error":{"message","type","code"}}, {"error":"..."} and {"message":"..."}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Classify maps a non-2xx response to exactly one APIError. It is a pure
// value-producing function: the executor calls it both to preview an error
// when deciding whether to retry and to construct the surfaced error.
func Classify(status int, header http.Header, body []byte) *APIError {
	message, code := parseErrorBody(body)
	requestID := header.Get("x-request-id")

	switch {
	case status == http.StatusUnauthorized:
		if message == "" {
			message = "invalid or missing API key"
		}
		return &APIError{
			Status:    status,
			Code:      code,
			Message:   message,
			RequestID: requestID,
			Body:      body,
			Err:       ErrAuthentication,
		}
	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "rate limit exceeded"
		}
		return &APIError{
			Status:     status,
			Code:       code,
			Message:    message,
			RequestID:  requestID,
			RetryAfter: parseRetryAfter(header),
			Body:       body,
			Err:        ErrRateLimited,
		}
	default:
		if message == "" {
			message = http.StatusText(status)
		}
		switch status {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			message = "service unavailable or internal error: " + message
		}
		return &APIError{
			Status:     status,
			Code:       code,
			Message:    message,
			RequestID:  requestID,
			RetryAfter: parseRetryAfter(header),
			Body:       body,
			Err:        ErrAPI,
		}
	}
}

// parseErrorBody extracts a human message and machine code from an error body.
// Malformed bodies yield empty results, never an error.
func parseErrorBody(body []byte) (message, code string) {
	if len(body) == 0 {
		return "", ""
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ""
	}

	if len(env.Error) > 0 {
		var detail errorDetail
		if err := json.Unmarshal(env.Error, &detail); err == nil && detail.Message != "" {
			code = detail.Code
			if code == "" {
				code = detail.Type
			}
			return detail.Message, code
		}

		// {"error":"plain string"}
		var s string
		if err := json.Unmarshal(env.Error, &s); err == nil {
			return s, ""
		}
	}

	return env.Message, ""
}

// parseRetryAfter reads the retry-after header as an integer count of seconds.
// Missing or unparseable values yield zero.
func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("retry-after")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
