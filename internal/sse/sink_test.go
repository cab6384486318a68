package sse

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseStreamHeadersAndWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Session-ID", "abc")
	s := NewResponseStream(context.Background(), rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "abc", rec.Header().Get("X-Session-ID"))
	assert.True(t, rec.Flushed)

	assert.True(t, s.TryWrite([]byte("data: 1\n\n")))
	assert.False(t, s.Closed())
	s.Close()
	assert.True(t, s.Closed())
	assert.False(t, s.TryWrite([]byte("data: 2\n\n")))
	assert.Equal(t, "data: 1\n\n", rec.Body.String())
	assert.NoError(t, s.Aborted())
}

func TestResponseStreamClosedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	s := NewResponseStream(ctx, rec)

	cancel()
	assert.True(t, s.Closed())
	assert.False(t, s.TryWrite(Done))
	assert.Empty(t, rec.Body.String())

	// abort after close is suppressed
	s.Abort(errors.New("late"))
	assert.NoError(t, s.Aborted())
}

func TestResponseStreamAbort(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewResponseStream(context.Background(), rec)
	boom := errors.New("upstream dropped")
	s.Abort(boom)
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Aborted(), boom)
	assert.False(t, s.TryWrite([]byte("data: x\n\n")))
}
