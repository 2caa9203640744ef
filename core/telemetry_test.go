package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordingHook struct {
	starts []RequestStartEvent
	ends   []RequestEndEvent
}

func (h *recordingHook) OnRequestStart(e RequestStartEvent) { h.starts = append(h.starts, e) }
func (h *recordingHook) OnRequestEnd(e RequestEndEvent)     { h.ends = append(h.ends, e) }

func TestTelemetryOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponseBody("ok")))
	}))
	defer srv.Close()

	hook := &recordingHook{}
	client := New("test-key", WithBaseURL(srv.URL), WithTelemetry(hook))
	if _, err := client.Chat("raven-large").User("hi").GetResponse(context.Background()); err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}

	if len(hook.starts) != 1 || len(hook.ends) != 1 {
		t.Fatalf("events = %d starts, %d ends, want 1 each", len(hook.starts), len(hook.ends))
	}
	start, end := hook.starts[0], hook.ends[0]
	if start.Path != "/chat/completions" || start.Model != "raven-large" {
		t.Errorf("start event = %+v", start)
	}
	if end.Err != nil {
		t.Errorf("end.Err = %v, want nil", end.Err)
	}
	if end.Usage.TotalTokens != 5 {
		t.Errorf("end.Usage.TotalTokens = %d, want 5", end.Usage.TotalTokens)
	}
	if end.Duration() < 0 {
		t.Errorf("Duration() = %v, want non-negative", end.Duration())
	}
}

func TestTelemetryOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	hook := &recordingHook{}
	client := New("test-key", WithBaseURL(srv.URL), WithTelemetry(hook))
	if _, err := client.Chat("raven-large").User("hi").GetResponse(context.Background()); err == nil {
		t.Fatal("GetResponse() should fail")
	}

	if len(hook.ends) != 1 {
		t.Fatalf("ends = %d, want 1", len(hook.ends))
	}
	if !errors.Is(hook.ends[0].Err, ErrAuthentication) {
		t.Errorf("end.Err = %v, want ErrAuthentication", hook.ends[0].Err)
	}
}

func TestTelemetryStreamEndsOnFinish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: "+chunkData("A")+"\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	hook := &recordingHook{}
	client := New("test-key", WithBaseURL(srv.URL), WithTelemetry(hook))
	stream, err := client.Chat("raven-large").User("hi").Stream(context.Background())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	// The end event fires when the stream finishes, not at establish time.
	if len(hook.ends) != 0 {
		t.Fatalf("ends before drain = %d, want 0", len(hook.ends))
	}

	if _, err := stream.Text(); err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	stream.Close()

	if len(hook.ends) != 1 {
		t.Fatalf("ends after drain = %d, want exactly 1", len(hook.ends))
	}
	end := hook.ends[0]
	if end.Err != nil {
		t.Errorf("end.Err = %v, want nil", end.Err)
	}
	if end.Skipped != 1 {
		t.Errorf("end.Skipped = %d, want 1", end.Skipped)
	}
}
