package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varsilias/carmatch/internal/api"
	"github.com/varsilias/carmatch/internal/coze"
	"github.com/varsilias/carmatch/internal/logging"
	"github.com/varsilias/carmatch/internal/relay"
	"github.com/varsilias/carmatch/internal/session"
	"github.com/varsilias/carmatch/pkg/types"
)

// relayServer runs the real /api/chat stack against a scripted upstream.
func relayServer(t *testing.T, token string, upstream http.HandlerFunc) *httptest.Server {
	t.Helper()
	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	log := logging.Discard()
	store := session.NewMemoryStore()
	rl := relay.New(
		coze.NewClient(coze.Config{URL: up.URL, Token: token}, log, coze.WithHTTPClient(up.Client())),
		log,
		relay.WithRecorder(store),
		relay.WithSessionIDGenerator(func() string { return "sid-1" }),
		relay.WithIdleTimeout(2*time.Second),
	)
	mux := chi.NewRouter()
	api.RegisterRoutes(mux, api.NewHandlers(log, rl, store))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeLines(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, l := range lines {
		_, _ = io.WriteString(w, l+"\n")
		w.(http.Flusher).Flush()
	}
}

func TestSendStreamsReplyIntoConversation(t *testing.T) {
	srv := relayServer(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeLines(w, `data: {"content":{"answer":"he"}}`, `data: {"content":{"answer":"llo"}}`)
	})
	c := NewClient(srv.URL, logging.Discard())
	conv := NewConversation()

	var fragments []string
	err := c.Send(context.Background(), conv, "  hi ", func(s string) { fragments = append(fragments, s) })
	require.NoError(t, err)

	assert.Equal(t, []string{"he", "llo"}, fragments)
	assert.Equal(t, []types.ChatMessage{
		{Role: types.RoleAssistant, Content: Greeting},
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
	}, conv.Messages())
	assert.False(t, conv.InProgress())
	assert.Equal(t, "sid-1", conv.SessionID())
}

func TestSendReusesSessionID(t *testing.T) {
	seen := make(chan string, 2)
	srv := relayServer(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SessionID string `json:"session_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		seen <- body.SessionID
		writeLines(w, `data: {"content":{"answer":"ok"}}`)
	})
	c := NewClient(srv.URL, logging.Discard())
	conv := NewConversation()

	require.NoError(t, c.Send(context.Background(), conv, "one", nil))
	require.NoError(t, c.Send(context.Background(), conv, "two", nil))
	assert.Equal(t, "sid-1", <-seen)
	assert.Equal(t, "sid-1", <-seen)
	assert.Len(t, conv.Messages(), 5)
}

func TestSendAdoptsUpstreamSessionID(t *testing.T) {
	srv := relayServer(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeLines(w, `data: {"session_id":"coze-77","content":{"answer":"x"}}`)
	})
	conv := NewConversation()
	require.NoError(t, NewClient(srv.URL, logging.Discard()).Send(context.Background(), conv, "q", nil))
	assert.Equal(t, "coze-77", conv.SessionID())
	assert.Equal(t, "x", conv.Last().Content)
}

func TestSendRelayErrorBecomesAssistantMessage(t *testing.T) {
	srv := relayServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})
	conv := NewConversation()

	err := NewClient(srv.URL, logging.Discard()).Send(context.Background(), conv, "q", nil)
	var rerr *ResponseError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusInternalServerError, rerr.Status)
	assert.Equal(t, "抱歉，发生了错误：COZE_API_TOKEN is not configured", conv.Last().Content)
	assert.False(t, conv.InProgress())
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	conv := NewConversation()
	err := NewClient(url, logging.Discard()).Send(context.Background(), conv, "q", nil)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(conv.Last().Content, "抱歉，发生了错误："))
}

func TestSendConnectionLost(t *testing.T) {
	srv := relayServer(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeLines(w, `data: {"content":{"answer":"一半"}}`)
		panic(http.ErrAbortHandler)
	})
	conv := NewConversation()

	err := NewClient(srv.URL, logging.Discard()).Send(context.Background(), conv, "q", nil)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Equal(t, "一半\n\n"+ConnectionLostNotice, conv.Last().Content)
	assert.False(t, conv.InProgress())
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	conv := NewConversation()
	err := NewClient("http://unused", logging.Discard()).Send(context.Background(), conv, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, conv.Messages(), 1)
}

func TestErrorMessageFallback(t *testing.T) {
	assert.Equal(t, "抱歉，发生了错误：请稍后重试", ErrorMessage(""))
}
