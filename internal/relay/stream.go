package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/varsilias/carmatch/internal/sse"
	"github.com/varsilias/carmatch/pkg/types"
)

const readChunk = 32 << 10

// Stream is one in-flight relay. All of its state (line buffer, known
// session id, assembled answer) belongs to the goroutine calling Pump.
type Stream struct {
	log    *slog.Logger
	rec    Recorder
	idle   time.Duration
	body   io.ReadCloser
	cancel context.CancelFunc

	query     string
	sessionID string
	returned  string
	lines     sse.LineBuffer
	answer    strings.Builder
}

// SessionID is the id known when the response headers are committed.
func (s *Stream) SessionID() string { return s.sessionID }

// ReturnedSessionID is the latest id seen, possibly replaced by the upstream.
func (s *Stream) ReturnedSessionID() string { return s.returned }

// Close releases the upstream without pumping it.
func (s *Stream) Close() error {
	s.cancel()
	return s.body.Close()
}

// Pump copies the upstream body to sink until the upstream ends, fails, or
// the sink closes. A clean end writes the [DONE] sentinel and closes sink; a
// failure aborts sink. Failures found after sink was closed by its consumer
// are not errors and Pump returns nil for them.
func (s *Stream) Pump(sink sse.Sink) error {
	defer s.Close()

	w := &watchdog{idle: s.idle}
	if s.idle > 0 {
		w.t = time.AfterFunc(s.idle, func() {
			w.fired.Store(true)
			s.cancel()
			_ = s.body.Close()
		})
		defer w.t.Stop()
	}
	return s.loop(sink, w)
}

// watchdog measures upstream silence only: it is paused while events are
// being written downstream, so a slow consumer never counts as an idle
// upstream.
type watchdog struct {
	idle  time.Duration
	t     *time.Timer
	fired atomic.Bool
}

func (w *watchdog) pause() {
	if w.t != nil {
		w.t.Stop()
	}
}

func (w *watchdog) resume() {
	if w.t != nil {
		w.t.Reset(w.idle)
	}
}

func (s *Stream) loop(sink sse.Sink, w *watchdog) error {
	buf := make([]byte, readChunk)
	for {
		if sink.Closed() {
			s.log.Debug("downstream closed; stopping upstream read")
			return nil
		}

		n, err := s.body.Read(buf)
		if n > 0 {
			w.pause()
			if ferr := s.feed(sink, s.lines.Push(buf[:n])); ferr != nil {
				return s.fail(sink, ferr)
			}
			if s.lines.Len() > sse.MaxLineBytes {
				return s.fail(sink, sse.ErrLineTooLong)
			}
			w.resume()
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			// an unterminated tail is not a complete line and is dropped
			if rest := s.lines.Rest(); rest != "" {
				s.log.Debug("dropping unterminated upstream line", "bytes", len(rest))
			}
			return s.finish(sink)
		case w.fired.Load():
			return s.fail(sink, fmt.Errorf("%w after %s: %v", ErrIdleTimeout, s.idle, err))
		default:
			return s.fail(sink, fmt.Errorf("relay: read upstream: %w", err))
		}
	}
}

// feed handles complete lines in order.
func (s *Stream) feed(sink sse.Sink, lines []string) error {
	for _, line := range lines {
		if sink.Closed() {
			return nil
		}

		res := sse.ParseLine(line)
		switch res.Kind {
		case sse.KindSkip:
			if res.Err != nil {
				s.log.Debug("skipping malformed upstream line", "err", res.Err)
			}
		case sse.KindFatal:
			return res.Err
		case sse.KindFrame:
			if id := res.Frame.SessionID; id != "" && id != s.returned {
				s.log.Info("upstream issued new session id", "returned_session_id", id)
				s.returned = id
				s.emit(sink, sse.SessionEvent{SessionID: id})
			}
			if c := res.Frame.Content; c != "" {
				s.answer.WriteString(c)
				s.emit(sink, sse.ContentEvent{Content: c})
			}
		}
	}
	return nil
}

// emit drops v when the sink is already closed.
func (s *Stream) emit(sink sse.Sink, v any) {
	if sink.Closed() {
		return
	}
	b, err := sse.EncodeData(v)
	if err != nil {
		s.log.Error("encode event", "err", err)
		return
	}
	if !sink.TryWrite(b) {
		s.log.Debug("downstream write refused; dropping remaining events")
	}
}

func (s *Stream) finish(sink sse.Sink) error {
	if sink.Closed() {
		return nil
	}
	sink.TryWrite(sse.Done)
	sink.Close()
	s.record()
	return nil
}

func (s *Stream) fail(sink sse.Sink, err error) error {
	if sink.Closed() {
		s.log.Debug("upstream error after downstream closed", "err", err)
		return nil
	}
	s.log.Error("stream error", "err", err)
	sink.Abort(err)
	return err
}

func (s *Stream) record() {
	if s.rec == nil {
		return
	}
	turn := []types.ChatMessage{
		{Role: types.RoleUser, Content: s.query},
		{Role: types.RoleAssistant, Content: s.answer.String()},
	}
	for _, m := range turn {
		if err := s.rec.Append(s.returned, m); err != nil {
			s.log.Warn("record turn", "err", err)
			return
		}
	}
}
