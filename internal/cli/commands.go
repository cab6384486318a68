// Package cli is the terminal front end: it talks to a running relay through
// chat.Client, exactly like the browser page does.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varsilias/carmatch/internal/buildinfo"
	"github.com/varsilias/carmatch/internal/chat"
	"github.com/varsilias/carmatch/internal/logging"
)

type options struct {
	server   string
	render   bool
	logLevel string
}

// NewRootCommand builds the carmatch command tree writing to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "carmatch",
		Short:   "车圈红娘 terminal client",
		Version: buildinfo.Version,
		Example: `  # interactive chat against a local server
  $ carmatch chat -s http://localhost:8080

  # one question, answer rendered as markdown
  $ carmatch ask --render "二十万预算买什么车？"`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr("CARMATCH_SERVER", "http://localhost:8080"), "relay base URL")
	root.PersistentFlags().BoolVar(&opts.render, "render", isTerminal(out), "render answers as markdown once complete")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level for client diagnostics")

	root.AddCommand(newAskCommand(opts), newChatCommand(opts))
	return root
}

func newAskCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			s := newSession(opts, cmd.OutOrStdout())
			return s.turn(ctx, strings.Join(args, " "))
		},
	}
}

func newChatCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (/exit to quit)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			s := newSession(opts, out)
			fmt.Fprintln(out, chat.Greeting)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "\n> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				}

				// failures are already printed as the assistant reply
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				_ = s.turn(ctx, line)
				stop()
			}
		},
	}
}

type session struct {
	opts   *options
	out    io.Writer
	client *chat.Client
	conv   *chat.Conversation
	md     *markdown
}

func newSession(opts *options, out io.Writer) *session {
	log := logging.NewWriter(os.Stderr, opts.logLevel, false)
	s := &session{
		opts:   opts,
		out:    out,
		client: chat.NewClient(opts.server, log),
		conv:   chat.NewConversation(),
	}
	if opts.render {
		s.md = newMarkdown(out)
	}
	return s
}

// turn prints fragments as they arrive, or the rendered answer at the end
// when rendering is on. Failures are printed as the assistant message the
// conversation recorded for them.
func (s *session) turn(ctx context.Context, text string) error {
	var onFragment func(string)
	if s.md == nil {
		onFragment = func(f string) { fmt.Fprint(s.out, f) }
	}

	err := s.client.Send(ctx, s.conv, text, onFragment)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return err
	case err == nil, errors.Is(err, chat.ErrConnectionLost):
		if s.md != nil {
			fmt.Fprint(s.out, s.md.render(s.conv.Last().Content))
		} else {
			fmt.Fprintln(s.out)
		}
	default:
		fmt.Fprintln(s.out, s.conv.Last().Content)
	}
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
