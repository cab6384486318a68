package sse

import (
	"context"
	"errors"
	"net/http"
)

// Sink is the downstream side of a relayed stream. Once Closed reports true
// every further TryWrite is a no-op returning false.
type Sink interface {
	// TryWrite writes one framed event. It returns false, and marks the sink
	// closed, when the consumer is gone or the write fails.
	TryWrite(p []byte) bool
	Closed() bool
	// Close ends the stream cleanly.
	Close()
	// Abort ends the stream abnormally.
	Abort(err error)
}

var ErrStreamClosed = errors.New("sse: stream closed")

// ResponseStream is a Sink over an http.ResponseWriter. It is owned by the
// goroutine serving the request and is not safe for concurrent use.
type ResponseStream struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ctx    context.Context
	closed bool
	abort  error
}

// NewResponseStream commits status 200 with the headers already present on w
// plus the event-stream ones, and flushes them so the client sees the
// response start before any event arrives.
func NewResponseStream(ctx context.Context, w http.ResponseWriter) *ResponseStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &ResponseStream{w: w, rc: http.NewResponseController(w), ctx: ctx}
	// a writer without flush support still works, just buffered
	_ = s.rc.Flush()
	return s
}

func (s *ResponseStream) TryWrite(p []byte) bool {
	if s.Closed() {
		return false
	}
	if _, err := s.w.Write(p); err != nil {
		s.closed = true
		return false
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.closed = true
		return false
	}
	return true
}

// Closed also reports true once the request context is done, which is how a
// client disconnect becomes visible.
func (s *ResponseStream) Closed() bool {
	if !s.closed && s.ctx.Err() != nil {
		s.closed = true
	}
	return s.closed
}

func (s *ResponseStream) Close() {
	s.closed = true
}

func (s *ResponseStream) Abort(err error) {
	if s.closed {
		return
	}
	if err == nil {
		err = ErrStreamClosed
	}
	s.closed = true
	s.abort = err
}

// Aborted returns the error passed to Abort, if any. The HTTP handler uses it
// to tear the connection down instead of finishing the response normally.
func (s *ResponseStream) Aborted() error { return s.abort }
