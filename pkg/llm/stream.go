package llm

import (
	"context"
	"sync"
)

// StreamEventType discriminates StreamEvent payloads.
type StreamEventType string

const (
	// StreamTextDelta carries an incremental chunk of assistant text.
	StreamTextDelta StreamEventType = "text_delta"
	// StreamToolCall carries one fully assembled tool call.
	StreamToolCall StreamEventType = "tool_call"
	// StreamDone marks the end of the stream; the final Response is
	// available on the reader afterwards.
	StreamDone StreamEventType = "done"
)

// StreamEvent is one unit of streamed model output.
type StreamEvent struct {
	Type     StreamEventType
	Text     string
	ToolCall *ToolCall
}

// StreamReader delivers events from one in-flight streaming call.
//
// The reader is finite and single-use: iterate with Next, inspect Current,
// then check Err once Next returns false. Response returns the accumulated
// final response after a clean finish.
type StreamReader struct {
	events chan StreamEvent
	cur    StreamEvent

	mu   sync.Mutex
	err  error
	resp *Response
}

// StreamWriter is the producer side of a StreamReader. Providers emit events
// while consuming the wire stream and close it exactly once.
type StreamWriter struct {
	r *StreamReader
}

// NewStreamPipe creates a connected reader/writer pair. buffer bounds how far
// the producer may run ahead of the consumer.
func NewStreamPipe(buffer int) (*StreamReader, *StreamWriter) {
	if buffer < 0 {
		buffer = 0
	}
	r := &StreamReader{events: make(chan StreamEvent, buffer)}
	return r, &StreamWriter{r: r}
}

// Next blocks until the next event arrives. It returns false when the stream
// is exhausted, after which Err and Response are valid.
func (r *StreamReader) Next() bool {
	ev, ok := <-r.events
	if !ok {
		return false
	}
	r.cur = ev
	return true
}

// Current returns the event most recently produced by Next.
func (r *StreamReader) Current() StreamEvent {
	return r.cur
}

// Err returns the terminal error, if any, once Next has returned false.
func (r *StreamReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Response returns the accumulated final response. It is nil until the stream
// finished cleanly.
func (r *StreamReader) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resp
}

// Emit delivers one event to the consumer. It returns false when ctx is done
// before the consumer accepts the event; the producer should stop.
func (w *StreamWriter) Emit(ctx context.Context, ev StreamEvent) bool {
	select {
	case w.r.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close finishes the stream with the final response or a terminal error.
// Close must be called exactly once.
func (w *StreamWriter) Close(resp *Response, err error) {
	w.r.mu.Lock()
	w.r.resp = resp
	w.r.err = err
	w.r.mu.Unlock()
	close(w.r.events)
}

// Drain consumes the remaining events and returns the final response. It is
// a convenience for callers that started a stream but want blocking
// semantics.
func (r *StreamReader) Drain() (*Response, error) {
	for r.Next() {
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return r.Response(), nil
}
