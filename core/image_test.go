package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestGenerateImage(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %q, want /images/generations", r.URL.Path)
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["prompt"] != "a corvid at dusk" {
			t.Errorf("prompt = %v", payload["prompt"])
		}
		if payload["size"] != "512x512" {
			t.Errorf("size = %v, want 512x512", payload["size"])
		}

		w.Header().Set("x-request-id", "req_img")
		w.Write([]byte(`{"created":1700000000,"data":[{"b64_json":"` + b64 + `","revised_prompt":"a crow at dusk"}]}`))
	}))
	defer srv.Close()

	client := New("test-key", WithBaseURL(srv.URL))
	resp, err := client.GenerateImage(context.Background(), &ImageGenerateRequest{
		Model:          "raven-image",
		Prompt:         "a corvid at dusk",
		Size:           ImageSize512x512,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}

	if len(resp.Data) != 1 {
		t.Fatalf("len(Data) = %d, want 1", len(resp.Data))
	}
	raw, err := resp.Data[0].Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if string(raw) != "png-bytes" {
		t.Errorf("Bytes() = %q, want %q", raw, "png-bytes")
	}
	if resp.Data[0].RevisedPrompt != "a crow at dusk" {
		t.Errorf("RevisedPrompt = %q", resp.Data[0].RevisedPrompt)
	}
	if resp.RequestID != "req_img" {
		t.Errorf("RequestID = %q, want req_img", resp.RequestID)
	}
}

func TestGenerateImageEmptyPrompt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := New("test-key", WithBaseURL(srv.URL))

	for _, req := range []*ImageGenerateRequest{nil, {Model: "raven-image"}} {
		_, err := client.GenerateImage(context.Background(), req)
		if !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("GenerateImage(%+v) error = %v, want ErrEmptyPrompt", req, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("error = %v, want it to wrap ErrValidation", err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("server saw %d requests, want 0", calls.Load())
	}
}

func TestImageDataBytesURLOnly(t *testing.T) {
	raw, err := ImageData{URL: "https://cdn.example/img.png"}.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if raw != nil {
		t.Errorf("Bytes() = %v, want nil for URL-delivered images", raw)
	}
}

func TestGenerateImageRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"created":1700000000,"data":[{"url":"https://cdn.example/img.png"}]}`))
	}))
	defer srv.Close()

	client := New("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry(2)))
	resp, err := client.GenerateImage(context.Background(), &ImageGenerateRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].URL == "" {
		t.Errorf("Data = %+v, want one URL entry", resp.Data)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d requests, want 2", calls.Load())
	}
}
