package core

import "time"

// TelemetryHook receives notifications about request lifecycle events.
// Implementations can use this for logging, metrics or tracing.
//
// Event types intentionally exclude sensitive data: no API keys, no prompt
// content, no model output. Only operational metadata is exposed.
type TelemetryHook interface {
	// OnRequestStart is called when a request to the service begins.
	OnRequestStart(e RequestStartEvent)

	// OnRequestEnd is called when a request completes. For streaming calls
	// this fires when the stream finishes, not when it is established.
	OnRequestEnd(e RequestEndEvent)
}

// RequestStartEvent contains metadata about a starting request.
type RequestStartEvent struct {
	Path  string    // API path, e.g. "/chat/completions"
	Model ModelID   // Model being called
	Start time.Time // When the request started
}

// RequestEndEvent contains metadata about a completed request.
type RequestEndEvent struct {
	Path    string     // API path
	Model   ModelID    // Model that was called
	Start   time.Time  // When the request started
	End     time.Time  // When the request completed
	Usage   TokenUsage // Token consumption, zeroed if unavailable
	Skipped int        // Malformed stream fragments dropped, streaming only
	Err     error      // Error if the request failed, nil on success
}

// Duration returns the elapsed time for the request.
func (e RequestEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NoopTelemetryHook is a no-op implementation of TelemetryHook.
type NoopTelemetryHook struct{}

// OnRequestStart does nothing.
func (NoopTelemetryHook) OnRequestStart(RequestStartEvent) {}

// OnRequestEnd does nothing.
func (NoopTelemetryHook) OnRequestEnd(RequestEndEvent) {}

// Compile-time check that NoopTelemetryHook implements TelemetryHook.
var _ TelemetryHook = NoopTelemetryHook{}
