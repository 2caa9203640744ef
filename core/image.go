package core

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"
)

// imageGenerationsPath is the API endpoint for image generation.
const imageGenerationsPath = "/images/generations"

// ImageSize represents supported image dimensions.
type ImageSize string

const (
	ImageSize256x256   ImageSize = "256x256"
	ImageSize512x512   ImageSize = "512x512"
	ImageSize1024x1024 ImageSize = "1024x1024"
)

// ImageGenerateRequest represents a request to generate images.
type ImageGenerateRequest struct {
	Model  ModelID `json:"model,omitempty"`
	Prompt string  `json:"prompt"`

	N              int       `json:"n,omitempty"`               // Number of images (default 1)
	Size           ImageSize `json:"size,omitempty"`            // Image dimensions
	ResponseFormat string    `json:"response_format,omitempty"` // "url" or "b64_json"
	User           string    `json:"user,omitempty"`
}

// ImageResponse represents a response containing generated images.
type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`

	RateLimit RateLimit `json:"-"`
	RequestID string    `json:"-"`
}

// ImageData represents a single generated image.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Bytes decodes and returns the image data. Images delivered by URL must be
// fetched separately; Bytes returns nil for them.
func (d ImageData) Bytes() ([]byte, error) {
	if d.B64JSON != "" {
		return base64.StdEncoding.DecodeString(d.B64JSON)
	}
	return nil, nil
}

// ImageOption configures a single image generation call.
type ImageOption func(*imageCall)

type imageCall struct {
	headers http.Header
	timeout time.Duration
}

// WithImageHeader adds a per-call header.
func WithImageHeader(key, value string) ImageOption {
	return func(ic *imageCall) {
		if ic.headers == nil {
			ic.headers = make(http.Header)
		}
		ic.headers.Set(key, value)
	}
}

// WithImageTimeout overrides the client timeout for this call.
func WithImageTimeout(d time.Duration) ImageOption {
	return func(ic *imageCall) {
		ic.timeout = d
	}
}

// GenerateImage generates images from a text prompt. It runs through the
// same retrying executor as chat requests.
func (c *Client) GenerateImage(ctx context.Context, req *ImageGenerateRequest, opts ...ImageOption) (*ImageResponse, error) {
	if req == nil || req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}

	var call imageCall
	for _, opt := range opts {
		opt(&call)
	}

	start := time.Now()
	c.telemetry.OnRequestStart(RequestStartEvent{
		Path:  imageGenerationsPath,
		Model: req.Model,
		Start: start,
	})

	var resp ImageResponse
	header, err := c.postJSON(ctx, imageGenerationsPath, req, call.headers, call.timeout, &resp)
	if header != nil {
		resp.RateLimit = parseRateLimit(header)
		resp.RequestID = header.Get("x-request-id")
	}

	c.telemetry.OnRequestEnd(RequestEndEvent{
		Path:  imageGenerationsPath,
		Model: req.Model,
		Start: start,
		End:   time.Now(),
		Err:   err,
	})

	if err != nil {
		return nil, err
	}
	return &resp, nil
}
