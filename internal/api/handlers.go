package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/varsilias/carmatch/internal/buildinfo"
	"github.com/varsilias/carmatch/internal/coze"
	"github.com/varsilias/carmatch/internal/middleware"
	"github.com/varsilias/carmatch/internal/relay"
	"github.com/varsilias/carmatch/internal/session"
	"github.com/varsilias/carmatch/internal/sse"
	"github.com/varsilias/carmatch/pkg/utils"
)

const maxChatBody = 1 << 20

type Handlers struct {
	log      *slog.Logger
	relay    *relay.Relay
	sessions session.Store
}

func NewHandlers(log *slog.Logger, r *relay.Relay, store session.Store) *Handlers {
	return &Handlers{
		log:      log,
		relay:    r,
		sessions: store,
	}
}

// Health is a basic liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"status":    true,
		"message":   "carmatch",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"version":  buildinfo.Version,
		"commit":   buildinfo.Commit,
		"built_at": buildinfo.BuiltAt,
	}

	utils.JSON(w, http.StatusOK, res)
}

// Chat POST /api/chat { messages, session_id? }
//
// Errors found before the upstream stream opens are JSON with a status code.
// Once the event stream has started the status is fixed, so a later upstream
// failure tears the connection down instead.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	log := h.log.With("req_id", middleware.GetRequestID(r.Context()))

	var turn relay.Turn
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&turn); err != nil {
		log.Warn("chat: decode body", "err", err)
		utils.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	st, err := h.relay.Open(r.Context(), turn)
	if err != nil {
		h.openError(w, log, err)
		return
	}

	log = log.With("session_id", st.SessionID())
	log.Info("chat: streaming", "messages", len(turn.Messages))

	w.Header().Set("X-Session-ID", st.SessionID())
	stream := sse.NewResponseStream(r.Context(), w)
	if err := st.Pump(stream); err != nil && stream.Aborted() != nil {
		log.Error("chat: stream aborted", "err", err)
		// the only way to signal failure after the status line went out
		panic(http.ErrAbortHandler)
	}
}

func (h *Handlers) openError(w http.ResponseWriter, log *slog.Logger, err error) {
	var se *coze.StatusError
	switch {
	case errors.Is(err, coze.ErrMissingToken):
		log.Error("chat: upstream credential missing")
		utils.Error(w, http.StatusInternalServerError, "COZE_API_TOKEN is not configured")
	case errors.Is(err, relay.ErrNoUserMessage):
		utils.Error(w, http.StatusBadRequest, "No user message found")
	case errors.As(err, &se):
		log.Error("chat: upstream call failed", "status", se.Status, "details", se.Body)
		utils.JSON(w, se.Status, map[string]any{
			"error":   "Failed to call Coze API",
			"status":  se.Status,
			"details": se.Body,
		})
	default:
		log.Error("chat: open stream", "err", err)
		utils.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// GetHistory GET /api/history/{sessionID}
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.Error(w, http.StatusBadRequest, "missing session_id")
		return
	}

	history, err := h.sessions.Get(sessionID)
	if err != nil {
		utils.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "history": history})
}
