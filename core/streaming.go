package core

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/corvid-labs/raven/internal/sse"
)

// StreamHandlers holds the callbacks for ChatStream.Each. Any handler may be
// nil. OnDelta receives both the incremental content and the accumulated text
// so far; OnDone fires once on clean completion; OnError fires before the
// error is returned to the caller.
type StreamHandlers struct {
	OnChunk func(chunk *ChatChunk)
	OnDelta func(delta, text string)
	OnDone  func(text string, usage TokenUsage)
	OnError func(err error)
}

// ChatStream is a single-pass cursor over one streaming chat completion.
// Iteration with Next is the primitive; Collect, Text and Each all advance
// the same cursor, so a stream supports at most one consumer.
//
// Accumulated text only ever grows, usage totals reflect the last chunk that
// carried them, and iterating again after exhaustion yields nothing without
// resetting either. ChatStream is not safe for concurrent use.
type ChatStream struct {
	dec    *sse.Decoder
	body   io.ReadCloser
	cancel context.CancelFunc

	cur     *ChatChunk
	err     error
	done    bool
	text    strings.Builder
	usage   TokenUsage
	skipped int
	repair  bool

	rateLimit RateLimit
	requestID string

	// onFinish fires exactly once when iteration terminates for any reason.
	onFinish func(usage TokenUsage, skipped int, err error)
	finished bool
}

// newChatStream wraps an established response body stream.
func newChatStream(body io.ReadCloser, cancel context.CancelFunc, repair bool) *ChatStream {
	return &ChatStream{
		dec:    sse.NewDecoder(body),
		body:   body,
		cancel: cancel,
		repair: repair,
	}
}

// doneSentinel is the data payload that terminates a stream cleanly.
const doneSentinel = "[DONE]"

// Next advances the cursor to the next chunk. It returns false when the
// stream ends, cleanly or not; check Err afterwards.
func (s *ChatStream) Next() bool {
	if s.done {
		return false
	}

	for {
		ev, err := s.dec.Next()
		if err == io.EOF {
			s.finish(nil)
			return false
		}
		if err != nil {
			// The byte source failed mid-stream. Never retried here.
			s.finish(newStreamError(err))
			return false
		}

		// Event-name records and empty data lines carry no chunk.
		if ev.Data == "" {
			continue
		}
		if ev.Data == doneSentinel {
			s.finish(nil)
			return false
		}

		chunk, ok := s.decodeChunk(ev.Data)
		if !ok {
			// Malformed or partial fragment: skip it and keep reading.
			// The Skipped counter is the only diagnostic.
			s.skipped++
			continue
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			s.text.WriteString(chunk.Choices[0].Delta.Content)
		}
		if chunk.Usage != nil {
			s.usage = *chunk.Usage
		}

		s.cur = chunk
		return true
	}
}

// decodeChunk parses one data payload, optionally repairing malformed JSON
// first when lenient decoding is enabled.
func (s *ChatStream) decodeChunk(data string) (*ChatChunk, bool) {
	var chunk ChatChunk
	if err := json.Unmarshal([]byte(data), &chunk); err == nil {
		return &chunk, true
	}

	if s.repair {
		repaired, err := jsonrepair.JSONRepair(data)
		if err == nil {
			if err := json.Unmarshal([]byte(repaired), &chunk); err == nil {
				return &chunk, true
			}
		}
	}

	return nil, false
}

// Current returns the chunk produced by the last successful Next.
func (s *ChatStream) Current() *ChatChunk {
	return s.cur
}

// Err returns the terminal error, or nil after a clean end.
func (s *ChatStream) Err() error {
	return s.err
}

// Accumulated returns the text accumulated so far. Valid at any point during
// or after iteration.
func (s *ChatStream) Accumulated() string {
	return s.text.String()
}

// Usage returns the usage totals from the last chunk that carried them.
func (s *ChatStream) Usage() TokenUsage {
	return s.usage
}

// Skipped returns the number of malformed data fragments silently dropped.
func (s *ChatStream) Skipped() int {
	return s.skipped
}

// RateLimit returns the rate-limit headers captured when the stream was
// established.
func (s *ChatStream) RateLimit() RateLimit {
	return s.rateLimit
}

// RequestID returns the x-request-id captured when the stream was established.
func (s *ChatStream) RequestID() string {
	return s.requestID
}

// Collect drains the stream and returns every chunk in order.
func (s *ChatStream) Collect() ([]*ChatChunk, error) {
	var chunks []*ChatChunk
	for s.Next() {
		chunks = append(chunks, s.Current())
	}
	return chunks, s.Err()
}

// Text drains the stream without retaining chunks and returns the final
// accumulated text.
func (s *ChatStream) Text() (string, error) {
	for s.Next() {
	}
	return s.text.String(), s.Err()
}

// Each drains the stream, invoking the handlers as it goes. Errors are passed
// to OnError and then returned rather than swallowed.
func (s *ChatStream) Each(h StreamHandlers) error {
	for s.Next() {
		chunk := s.Current()
		if h.OnChunk != nil {
			h.OnChunk(chunk)
		}
		if h.OnDelta != nil && len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			h.OnDelta(chunk.Choices[0].Delta.Content, s.text.String())
		}
	}
	if err := s.Err(); err != nil {
		if h.OnError != nil {
			h.OnError(err)
		}
		return err
	}
	if h.OnDone != nil {
		h.OnDone(s.text.String(), s.usage)
	}
	return nil
}

// Close aborts the stream. The underlying read is cancelled, no further
// chunks are produced, and already-yielded chunks remain valid. Close is
// idempotent and safe after natural completion.
func (s *ChatStream) Close() error {
	s.finish(s.err)
	return nil
}

// finish terminates iteration, releases the timer and connection, and fires
// the completion hook exactly once.
func (s *ChatStream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	if s.cancel != nil {
		s.cancel()
	}
	if s.body != nil {
		s.body.Close()
	}
	if s.onFinish != nil && !s.finished {
		s.finished = true
		s.onFinish(s.usage, s.skipped, err)
	}
}
