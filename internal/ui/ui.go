package ui

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/varsilias/carmatch/internal/session"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

//go:embed web/templates/*.html web/templates/partials/*.html web/static/*
var webFS embed.FS

type UI struct {
	log      *slog.Logger
	tpl      *template.Template
	sessions *session.MemoryStore
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	static   http.Handler
}

func New(log *slog.Logger, s *session.MemoryStore) (*UI, error) {
	t := template.New("root")
	var err error
	if t, err = t.ParseFS(webFS, "web/templates/*.html"); err != nil {
		return nil, err
	}
	if t, err = t.ParseFS(webFS, "web/templates/partials/*.html"); err != nil {
		return nil, err
	}

	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, err
	}

	md := goldmark.New(
		// raw HTML from the model is dropped rather than trusted
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		goldmark.WithExtensions(
			highlighting.NewHighlighting(
				highlighting.WithStyle("dracula"),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(false),
				),
			),
		),
	)

	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("code", "pre", "span")
	p.AllowAttrs("style").OnElements("span", "pre") // inline styles from the highlighter

	return &UI{
		log:      log,
		tpl:      t,
		sessions: s,
		md:       md,
		policy:   p,
		static:   http.FileServer(http.FS(static)),
	}, nil
}

type MsgView struct {
	Role string
	HTML template.HTML
}

func (u *UI) mdHTML(src string) template.HTML {
	var buf bytes.Buffer
	if err := u.md.Convert([]byte(src), &buf); err != nil {
		u.log.Warn("markdown convert", "err", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(u.policy.SanitizeBytes(buf.Bytes()))
}

func (u *UI) render(w http.ResponseWriter, name string, data any, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := u.tpl.ExecuteTemplate(w, name, data); err != nil {
		u.errTpl(w, err)
	}
}

func (u *UI) errTpl(w http.ResponseWriter, err error) {
	u.log.Error("template execute", "err", err)
	_, _ = w.Write([]byte("<pre>template error: " + template.HTMLEscapeString(err.Error()) + "</pre>"))
}
