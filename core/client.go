package core

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
)

// chatCompletionsPath is the API endpoint for chat completions.
const chatCompletionsPath = "/chat/completions"

// DefaultBaseURL is the default Raven API base URL.
const DefaultBaseURL = "https://api.raven.dev/v1"

// DefaultAPIKeyEnvVar is the environment variable name for the API key.
const DefaultAPIKeyEnvVar = "RAVEN_API_KEY"

// ErrAPIKeyNotFound is returned when the API key environment variable is not set.
var ErrAPIKeyNotFound = errors.New("raven: RAVEN_API_KEY environment variable not set")

// Config holds the client configuration. All fields are fixed at
// construction time; concurrent calls share it read-only.
type Config struct {
	// APIKey authenticates every request (required).
	APIKey Secret

	// BaseURL is the API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout bounds each logical call, including retries and backoff
	// sleeps. Zero disables the internal timer.
	Timeout time.Duration

	// DefaultModel is used when a chat request does not name a model.
	DefaultModel ModelID

	// Headers contains extra headers sent with every request. Per-call
	// headers override them.
	Headers http.Header
}

// Client is the entry point for talking to the Raven service.
// Client is safe for concurrent use; independent calls share only the
// immutable configuration.
type Client struct {
	config           Config
	httpClient       Doer
	retry            RetryPolicy
	telemetry        TelemetryHook
	repairStreamJSON bool
}

// Option configures a Client.
type Option func(*Client)

// New creates a Client with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		config: Config{
			APIKey:  NewSecret(apiKey),
			BaseURL: DefaultBaseURL,
			Timeout: 60 * time.Second,
		},
		httpClient: http.DefaultClient,
		retry:      DefaultRetryPolicy(),
		telemetry:  NoopTelemetryHook{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv creates a Client using the RAVEN_API_KEY environment variable.
func NewFromEnv(opts ...Option) (*Client, error) {
	apiKey := os.Getenv(DefaultAPIKeyEnvVar)
	if apiKey == "" {
		return nil, ErrAPIKeyNotFound
	}
	return New(apiKey, opts...), nil
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.BaseURL = url
	}
}

// WithHTTPClient injects a custom network-call implementation.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.httpClient = d
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.config.Timeout = d
	}
}

// WithMaxRetries replaces the retry policy with one retrying up to n times,
// keeping the default backoff parameters.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retry = NewRetryPolicy(RetryConfig{MaxRetries: n})
	}
}

// WithRetryPolicy sets a custom retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		if p != nil {
			c.retry = p
		}
	}
}

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(m ModelID) Option {
	return func(c *Client) {
		c.config.DefaultModel = m
	}
}

// WithHeader adds an extra header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.config.Headers == nil {
			c.config.Headers = make(http.Header)
		}
		c.config.Headers.Set(key, value)
	}
}

// WithTelemetry sets the telemetry hook.
func WithTelemetry(h TelemetryHook) Option {
	return func(c *Client) {
		if h != nil {
			c.telemetry = h
		}
	}
}

// WithLenientStreamDecoding makes streams attempt to repair malformed JSON
// fragments before dropping them. Off by default: malformed fragments are
// silently skipped and counted.
func WithLenientStreamDecoding() Option {
	return func(c *Client) {
		c.repairStreamJSON = true
	}
}

// Chat returns a ChatBuilder for constructing and executing a chat request.
// Pass "" to use the client's default model.
func (c *Client) Chat(model ModelID) *ChatBuilder {
	return &ChatBuilder{
		client: c,
		req:    ChatRequest{Model: model},
	}
}

// ChatBuilder provides a fluent API for building chat requests.
// ChatBuilder is NOT thread-safe and should not be shared across goroutines.
type ChatBuilder struct {
	client  *Client
	req     ChatRequest
	headers http.Header
	timeout time.Duration
}

// System appends a system message.
func (b *ChatBuilder) System(s string) *ChatBuilder {
	b.req.Messages = append(b.req.Messages, Message{Role: RoleSystem, Content: s})
	return b
}

// User appends a user message.
func (b *ChatBuilder) User(s string) *ChatBuilder {
	b.req.Messages = append(b.req.Messages, Message{Role: RoleUser, Content: s})
	return b
}

// UserNamed appends a user message with a participant name.
func (b *ChatBuilder) UserNamed(name, s string) *ChatBuilder {
	b.req.Messages = append(b.req.Messages, Message{Role: RoleUser, Content: s, Name: name})
	return b
}

// Assistant appends an assistant message.
func (b *ChatBuilder) Assistant(s string) *ChatBuilder {
	b.req.Messages = append(b.req.Messages, Message{Role: RoleAssistant, Content: s})
	return b
}

// Messages appends pre-built messages.
func (b *ChatBuilder) Messages(msgs ...Message) *ChatBuilder {
	b.req.Messages = append(b.req.Messages, msgs...)
	return b
}

// Temperature sets the temperature parameter.
func (b *ChatBuilder) Temperature(v float32) *ChatBuilder {
	b.req.Temperature = &v
	return b
}

// MaxTokens sets the maximum tokens parameter.
func (b *ChatBuilder) MaxTokens(n int) *ChatBuilder {
	b.req.MaxTokens = &n
	return b
}

// TopP sets the nucleus sampling parameter.
func (b *ChatBuilder) TopP(v float32) *ChatBuilder {
	b.req.TopP = &v
	return b
}

// Stop sets the stop sequences.
func (b *ChatBuilder) Stop(seqs ...string) *ChatBuilder {
	b.req.Stop = seqs
	return b
}

// PresencePenalty sets the presence penalty parameter.
func (b *ChatBuilder) PresencePenalty(v float32) *ChatBuilder {
	b.req.PresencePenalty = &v
	return b
}

// FrequencyPenalty sets the frequency penalty parameter.
func (b *ChatBuilder) FrequencyPenalty(v float32) *ChatBuilder {
	b.req.FrequencyPenalty = &v
	return b
}

// EndUser sets the end-user identifier forwarded to the service.
func (b *ChatBuilder) EndUser(id string) *ChatBuilder {
	b.req.User = id
	return b
}

// Header adds a per-call header. Per-call headers win over client headers.
func (b *ChatBuilder) Header(key, value string) *ChatBuilder {
	if b.headers == nil {
		b.headers = make(http.Header)
	}
	b.headers.Set(key, value)
	return b
}

// Timeout overrides the client timeout for this call.
func (b *ChatBuilder) Timeout(d time.Duration) *ChatBuilder {
	b.timeout = d
	return b
}

// validate checks the request before any network activity.
func (b *ChatBuilder) validate() error {
	if b.req.Model == "" {
		b.req.Model = b.client.config.DefaultModel
	}
	if b.req.Model == "" {
		return ErrModelRequired
	}
	if len(b.req.Messages) == 0 {
		return ErrNoMessages
	}
	for _, msg := range b.req.Messages {
		if !msg.Role.IsValid() {
			return ErrBadRole
		}
		if msg.Content == "" {
			return ErrEmptyContent
		}
	}
	return nil
}

// GetResponse executes the chat request and returns the completed response.
func (b *ChatBuilder) GetResponse(ctx context.Context) (*ChatResponse, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	b.client.telemetry.OnRequestStart(RequestStartEvent{
		Path:  chatCompletionsPath,
		Model: b.req.Model,
		Start: start,
	})

	payload := newChatWirePayload(&b.req, false)

	var resp ChatResponse
	header, err := b.client.postJSON(ctx, chatCompletionsPath, payload, b.headers, b.timeout, &resp)
	if header != nil {
		resp.RateLimit = parseRateLimit(header)
		resp.RequestID = header.Get("x-request-id")
	}

	end := RequestEndEvent{
		Path:  chatCompletionsPath,
		Model: b.req.Model,
		Start: start,
		End:   time.Now(),
		Err:   err,
	}
	if err == nil {
		end.Usage = resp.Usage
	}
	b.client.telemetry.OnRequestEnd(end)

	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stream executes the chat request and returns a live ChatStream. The call
// retries only while establishing the stream; once the first byte is handed
// to the returned stream, failures surface as stream errors on it.
func (b *ChatBuilder) Stream(ctx context.Context) (*ChatStream, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	b.client.telemetry.OnRequestStart(RequestStartEvent{
		Path:  chatCompletionsPath,
		Model: b.req.Model,
		Start: start,
	})

	payload := newChatWirePayload(&b.req, true)

	resp, cancel, err := b.client.post(ctx, chatCompletionsPath, payload, b.headers, b.timeout, true)
	if err != nil {
		b.client.telemetry.OnRequestEnd(RequestEndEvent{
			Path:  chatCompletionsPath,
			Model: b.req.Model,
			Start: start,
			End:   time.Now(),
			Err:   err,
		})
		return nil, err
	}

	stream := newChatStream(resp.Body, cancel, b.client.repairStreamJSON)
	stream.rateLimit = parseRateLimit(resp.Header)
	stream.requestID = resp.Header.Get("x-request-id")

	model := b.req.Model
	hook := b.client.telemetry
	stream.onFinish = func(usage TokenUsage, skipped int, streamErr error) {
		hook.OnRequestEnd(RequestEndEvent{
			Path:    chatCompletionsPath,
			Model:   model,
			Start:   start,
			End:     time.Now(),
			Usage:   usage,
			Skipped: skipped,
			Err:     streamErr,
		})
	}

	return stream, nil
}
