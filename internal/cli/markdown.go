package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWidth = 80

type markdown struct {
	r *glamour.TermRenderer
}

func newMarkdown(out io.Writer) *markdown {
	width := defaultWidth
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w - 4
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &markdown{}
	}
	return &markdown{r: r}
}

// render falls back to the raw text when no renderer is available.
func (m *markdown) render(src string) string {
	if m.r == nil {
		return src + "\n"
	}
	out, err := m.r.Render(src)
	if err != nil {
		return src + "\n"
	}
	return out
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
