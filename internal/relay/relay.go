// Package relay forwards a chat turn to the upstream model and re-streams the
// answer to the caller as server-sent events.
package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/varsilias/carmatch/pkg/types"
)

var (
	ErrNoUserMessage = errors.New("relay: no user message found")
	ErrIdleTimeout   = errors.New("relay: upstream idle timeout")
)

const DefaultIdleTimeout = 60 * time.Second

// Upstream opens one streaming query. The returned body must allow Close to
// be called while a Read is blocked, as net/http response bodies do.
type Upstream interface {
	Check() error
	Open(ctx context.Context, query, sessionID string) (io.ReadCloser, error)
}

// Recorder receives completed turns.
type Recorder interface {
	Append(sessionID string, m types.ChatMessage) error
}

// Turn is the inbound request body.
type Turn struct {
	Messages  []types.ChatMessage `json:"messages"`
	SessionID string              `json:"session_id,omitempty"`
}

type Relay struct {
	up    Upstream
	log   *slog.Logger
	idle  time.Duration
	rec   Recorder
	newID func() string
}

type Option func(*Relay)

// WithIdleTimeout bounds the wait for each upstream read. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Relay) { r.idle = d }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Relay) { r.rec = rec }
}

func WithSessionIDGenerator(fn func() string) Option {
	return func(r *Relay) { r.newID = fn }
}

func New(up Upstream, log *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		up:    up,
		log:   log,
		idle:  DefaultIdleTimeout,
		newID: NewSessionID,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewSessionID returns a 32 character hex token.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Open validates the turn and opens the upstream stream. Every error returned
// here happens before any response byte is written, so the caller can still
// choose a status code. ctx should be the inbound request context: when it is
// cancelled the upstream call is cancelled too.
func (r *Relay) Open(ctx context.Context, turn Turn) (*Stream, error) {
	if err := r.up.Check(); err != nil {
		return nil, err
	}
	msg, ok := types.LastUserMessage(turn.Messages)
	if !ok {
		return nil, ErrNoUserMessage
	}

	sessionID := turn.SessionID
	if sessionID == "" {
		sessionID = r.newID()
	}

	ctx, cancel := context.WithCancel(ctx)
	body, err := r.up.Open(ctx, msg.Content, sessionID)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Stream{
		log:       r.log.With("session_id", sessionID),
		rec:       r.rec,
		idle:      r.idle,
		body:      body,
		cancel:    cancel,
		query:     msg.Content,
		sessionID: sessionID,
		returned:  sessionID,
	}, nil
}
