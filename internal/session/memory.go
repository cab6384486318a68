package session

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/varsilias/carmatch/pkg/types"
)

var ErrEmptySessionID = errors.New("empty session id")

// Store keeps completed turns per session id. Nothing survives a restart.
type Store interface {
	Append(sessionID string, m types.ChatMessage) error
	Get(sessionID string) ([]types.ChatMessage, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]types.ChatMessage
	updated map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[string][]types.ChatMessage),
		updated: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Append(sessionID string, m types.ChatMessage) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = append(s.data[sessionID], m)
	s.updated[sessionID] = time.Now()
	return nil
}

func (s *MemoryStore) Get(sessionID string) ([]types.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.data[sessionID]
	out := make([]types.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Summary is a lightweight listing entry.
type Summary struct {
	ID      string
	Title   string
	Updated time.Time
}

// List returns summaries, most recently updated first.
func (s *MemoryStore) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.data))
	for id, msgs := range s.data {
		out = append(out, Summary{ID: id, Title: titleFrom(msgs), Updated: s.updated[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })
	return out
}

// Touch ensures a session exists in the list.
func (s *MemoryStore) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sessionID]; !ok {
		s.data[sessionID] = nil
	}
	s.updated[sessionID] = time.Now()
}

func titleFrom(msgs []types.ChatMessage) string {
	for _, m := range msgs {
		if m.Role == types.RoleUser {
			return clip(strings.TrimSpace(m.Content), 16)
		}
	}
	return ""
}

// clip cuts at n runes; byte slicing would split CJK characters.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
