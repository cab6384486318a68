package ui

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/varsilias/carmatch/internal/buildinfo"
	"github.com/varsilias/carmatch/internal/chat"
	"github.com/varsilias/carmatch/internal/relay"
	"github.com/varsilias/carmatch/pkg/types"
)

const maxRenderBody = 256 << 10

func RegisterRoutes(mux chi.Router, h *UI) {
	mux.Get("/", h.Home)
	mux.Post("/ui/render", h.Render)
	mux.Post("/ui/session/new", h.NewSession)
	mux.Get("/ui/version-pill", h.VersionPill)
	mux.Handle("/static/*", http.StripPrefix("/static/", h.static))
}

// Home shows the chat page. An existing session can be resumed with /?s=<id>.
func (u *UI) Home(w http.ResponseWriter, r *http.Request) {
	sid := strings.TrimSpace(r.URL.Query().Get("s"))

	hist := []MsgView{{Role: string(types.RoleAssistant), HTML: u.mdHTML(chat.Greeting)}}
	if sid != "" {
		msgs, _ := u.sessions.Get(sid)
		for _, m := range msgs {
			hist = append(hist, MsgView{Role: string(m.Role), HTML: u.mdHTML(m.Content)})
		}
	}

	u.render(w, "chat.html", map[string]any{
		"SessionID": sid,
		"History":   hist,
		"Sessions":  u.sessions.List(),
		"Greeting":  chat.Greeting,
		"Commit":    buildinfo.Commit,
		"Version":   buildinfo.Version,
		"BuiltAt":   buildinfo.BuiltAt,
	}, http.StatusOK)
}

// Render POST /ui/render { role, content } returns one message bubble with the
// content rendered as sanitized markdown. The page calls it once a streamed
// reply is complete.
func (u *UI) Render(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBody)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	role := types.Role(req.Role)
	if !role.Valid() {
		role = types.RoleAssistant
	}
	u.render(w, "message.html", MsgView{Role: string(role), HTML: u.mdHTML(req.Content)}, http.StatusOK)
}

// NewSession creates a fresh session ID and redirects to /?s=...
func (u *UI) NewSession(w http.ResponseWriter, r *http.Request) {
	id := relay.NewSessionID()
	u.sessions.Touch(id)
	target := "/?s=" + url.QueryEscape(id)

	// If this is an HTMX request, instruct client to redirect
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

type versionVM struct {
	Version string
	Commit  string
	BuiltAt string
}

func (u *UI) VersionPill(w http.ResponseWriter, r *http.Request) {
	// Fragment response; avoid caching so rollouts show quickly
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	data := versionVM{
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
		BuiltAt: buildinfo.BuiltAt,
	}
	if err := u.tpl.ExecuteTemplate(w, "version-pill.html", data); err != nil {
		u.errTpl(w, err)
	}
}
