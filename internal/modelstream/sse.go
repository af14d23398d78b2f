package modelstream

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ErrStreamClosed is returned when the underlying reader reaches EOF before
// any further event is available.
var ErrStreamClosed = errors.New("modelstream: sse stream closed")

// SSEEvent is one decoded "event:"/"data:" frame.
type SSEEvent struct {
	Event string
	Data  []byte
}

// SSEReader tokenizes a text/event-stream body into SSEEvent frames.
//
// Maps to: goadesign-goa-ai/runtime/mcp/ssecaller.go readSSEEvent, widened
// from a one-shot call-response reader into a long-lived iterator driving
// the model streaming client (spec §4.D).
type SSEReader struct {
	r *bufio.Reader
}

// NewSSEReader wraps r for incremental event reads.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{r: bufio.NewReader(r)}
}

// Next reads and returns the next event, blocking until a blank line
// terminates it or the underlying reader is exhausted/erroring. Comment
// lines (prefixed ':') are skipped. Multiple "data:" lines within one event
// are joined with '\n', matching the SSE spec's multi-line data semantics.
func (s *SSEReader) Next() (SSEEvent, error) {
	var event string
	var data []byte

	for {
		line, err := s.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return SSEEvent{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if event == "" && len(data) == 0 {
				if err == io.EOF {
					return SSEEvent{}, ErrStreamClosed
				}
				continue
			}
			return SSEEvent{Event: event, Data: data}, nil
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimPrefix(line, "data:")
			chunk = strings.TrimPrefix(chunk, " ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
		}

		if err == io.EOF {
			if event == "" && len(data) == 0 {
				return SSEEvent{}, ErrStreamClosed
			}
			return SSEEvent{Event: event, Data: data}, nil
		}
	}
}
