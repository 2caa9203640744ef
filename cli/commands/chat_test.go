package commands

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corvid-labs/raven/cli/config"
	"github.com/corvid-labs/raven/core"
)

func newTestApp(t *testing.T, baseURL string) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv(core.DefaultAPIKeyEnvVar, "test-key")

	var stdout, stderr bytes.Buffer
	app := NewApp(
		WithConfigLoader(func(path string) (*config.Config, error) {
			return &config.Config{DefaultModel: "raven-large", BaseURL: baseURL}, nil
		}),
		WithIO(strings.NewReader(""), &stdout, &stderr),
	)
	return app, &stdout, &stderr
}

func TestExitError(t *testing.T) {
	err := exitWithCode(ExitValidation, errors.New("test error"))

	if err.Error() != "test error" {
		t.Errorf("Error() = %q, want 'test error'", err.Error())
	}

	exitErr, ok := err.(*exitError)
	if !ok {
		t.Fatal("expected *exitError type")
	}
	if exitErr.ExitCode() != ExitValidation {
		t.Errorf("ExitCode() = %d, want %d", exitErr.ExitCode(), ExitValidation)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"success", ExitSuccess, 0},
		{"validation", ExitValidation, 1},
		{"api", ExitAPI, 2},
		{"network", ExitNetwork, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.want {
				t.Errorf("Exit%s = %d, want %d", tt.name, tt.code, tt.want)
			}
		})
	}
}

func TestChatCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "raven-large",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer srv.Close()

	app, stdout, _ := newTestApp(t, srv.URL)
	app.root.SetArgs([]string{"chat", "--prompt", "hi"})

	if err := app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "hello there") {
		t.Errorf("stdout = %q, want it to contain the response text", stdout.String())
	}
}

func TestChatCommandStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, content := range []string{"hel", "lo"} {
			fmt.Fprintf(w, `data: {"choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", content)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	app, stdout, _ := newTestApp(t, srv.URL)
	app.root.SetArgs([]string{"chat", "--prompt", "hi", "--stream"})

	if err := app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "hello") {
		t.Errorf("stdout = %q, want streamed text", stdout.String())
	}
}

func TestChatCommandAPIErrorExitCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	app, _, stderr := newTestApp(t, srv.URL)
	app.root.SetArgs([]string{"chat", "--prompt", "hi"})

	err := app.Execute()
	exitErr, ok := err.(*exitError)
	if !ok {
		t.Fatalf("Execute() error = %T %v, want *exitError", err, err)
	}
	if exitErr.ExitCode() != ExitAPI {
		t.Errorf("ExitCode() = %d, want %d", exitErr.ExitCode(), ExitAPI)
	}
	if !strings.Contains(stderr.String(), "bad key") {
		t.Errorf("stderr = %q, want the error message", stderr.String())
	}
}

func TestChatCommandModelRequired(t *testing.T) {
	t.Setenv(core.DefaultAPIKeyEnvVar, "test-key")

	var stdout, stderr bytes.Buffer
	app := NewApp(
		WithConfigLoader(func(path string) (*config.Config, error) {
			return &config.Config{}, nil
		}),
		WithIO(strings.NewReader(""), &stdout, &stderr),
	)
	app.root.SetArgs([]string{"chat", "--prompt", "hi"})

	err := app.Execute()
	exitErr, ok := err.(*exitError)
	if !ok {
		t.Fatalf("Execute() error = %T %v, want *exitError", err, err)
	}
	if exitErr.ExitCode() != ExitValidation {
		t.Errorf("ExitCode() = %d, want %d", exitErr.ExitCode(), ExitValidation)
	}
}

func TestHandleChatErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"network", &core.APIError{Message: "refused", Err: core.ErrNetwork}, ExitNetwork},
		{"timeout", &core.APIError{Message: "timed out", Err: core.ErrTimeout}, ExitNetwork},
		{"rate limited", &core.APIError{Status: 429, Message: "slow down", Err: core.ErrRateLimited}, ExitAPI},
		{"auth", &core.APIError{Status: 401, Message: "bad key", Err: core.ErrAuthentication}, ExitAPI},
		{"validation", core.ErrModelRequired, ExitValidation},
		{"plain", errors.New("boom"), ExitAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			app := NewApp(WithIO(strings.NewReader(""), &stdout, &stderr))

			err := app.handleChatError(tt.err)
			exitErr, ok := err.(*exitError)
			if !ok {
				t.Fatalf("handleChatError() = %T, want *exitError", err)
			}
			if exitErr.ExitCode() != tt.want {
				t.Errorf("ExitCode() = %d, want %d", exitErr.ExitCode(), tt.want)
			}
		})
	}
}

func TestChatCommandJSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "raven-large",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	app, stdout, _ := newTestApp(t, srv.URL)
	app.root.SetArgs([]string{"chat", "--prompt", "hi", "--json"})

	if err := app.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, `"total_tokens": 2`) {
		t.Errorf("stdout = %q, want JSON with usage", out)
	}
	if !strings.Contains(out, `"output": "hi"`) {
		t.Errorf("stdout = %q, want JSON with output text", out)
	}
}
