// Package sse implements an incremental decoder for text/event-stream bodies.
package sse

import (
	"bytes"
	"io"
	"strings"
)

// Event is one decoded server-sent event line. A line carrying an event name
// leaves Data empty; a data line leaves Name empty.
type Event struct {
	Name string
	Data string
}

// Decoder turns a raw byte stream into a sequence of Events. The transport
// delivers bytes in arbitrarily sized, boundary-misaligned chunks, so the
// decoder buffers a trailing partial line between reads. Splitting happens on
// newline bytes only, which keeps multi-byte UTF-8 sequences intact in the
// buffer until their line completes.
//
// A Decoder is single-use: restart only by constructing a fresh Decoder over
// a fresh byte source.
type Decoder struct {
	r     io.Reader
	buf   []byte  // carry-over partial line across reads
	queue []Event // parsed events not yet handed out
	chunk []byte  // read scratch buffer
	eof   bool
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:     r,
		chunk: make([]byte, 4096),
	}
}

// Next returns the next event. It returns io.EOF after the underlying source
// is exhausted and the remaining buffer has been flushed; any other error
// comes from the underlying read.
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.queue) > 0 {
			ev := d.queue[0]
			d.queue = d.queue[1:]
			return ev, nil
		}
		if d.eof {
			return Event{}, io.EOF
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
			d.split(false)
		}
		if err == io.EOF {
			// Best-effort flush of whatever is left in the buffer.
			d.eof = true
			d.split(true)
			continue
		}
		if err != nil {
			return Event{}, err
		}
	}
}

// split parses complete lines out of the buffer, retaining the final
// (possibly incomplete) segment unless the source is exhausted. The lines
// are subslices of d.buf, so they must all be consumed before the buffer
// is rewritten to hold the carry-over.
func (d *Decoder) split(final bool) {
	lines := bytes.Split(d.buf, []byte{'\n'})

	last := len(lines)
	if !final {
		last--
	}

	for _, line := range lines[:last] {
		if ev, ok := parseLine(string(line)); ok {
			d.queue = append(d.queue, ev)
		}
	}

	if final {
		d.buf = nil
	} else {
		d.buf = append(d.buf[:0], lines[last]...)
	}
}

// parseLine interprets one SSE line. Blank lines, comments and unknown
// fields produce no event.
func parseLine(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Event{}, false
	}

	if name, ok := strings.CutPrefix(line, "event:"); ok {
		return Event{Name: strings.TrimSpace(name)}, true
	}
	if data, ok := strings.CutPrefix(line, "data:"); ok {
		return Event{Data: strings.TrimSpace(data)}, true
	}

	// Comments (":...") and fields like "id:" or "retry:" are ignored.
	return Event{}, false
}
