package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/reeflective/readline"
	"github.com/spf13/cobra"

	"doc-chat/cmd/docchat/chat"
	"doc-chat/cmd/docchat/clients/chatclient"
)

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <file>",
		Short: "Upload a document and chat about it interactively",
		Long: `Upload a document and start an interactive conversation about it.

Commands (interactive mode only):
  /new <file>       - Replace the document and start a new conversation
  /history          - Show the conversation so far
  /info             - Show what the server knows about this session
  /quit, /exit, /q  - Exit
  /help             - Show available commands`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := opts.newApp(ctx, cmd.OutOrStdout())
			defer a.ws.Abandon()

			if _, err := a.open(ctx, args); err != nil {
				return err
			}
			return a.repl(ctx, newShell())
		},
	}
}

// lineReader 는 한 줄 입력을 읽는다. *readline.Shell 이 구현한다.
type lineReader interface {
	Readline() (string, error)
}

var slashCommands = []struct {
	name        string
	usage       string
	description string
}{
	{"/new", "/new <file>", "Replace the document and start a new conversation"},
	{"/history", "/history", "Show the conversation so far"},
	{"/info", "/info", "Show what the server knows about this session"},
	{"/help", "/help", "Show available commands"},
	{"/quit", "/quit, /exit, /q", "Exit"},
}

func newShell() *readline.Shell {
	rl := readline.NewShell()
	rl.Prompt.Primary(func() string { return "docchat> " })
	rl.History.Add("default", readline.NewInMemoryHistory())
	rl.Completer = func(line []rune, cursor int) readline.Completions {
		return completeInput(string(line), cursor)
	}
	return rl
}

// repl 은 입력을 읽어 현재 세션에 보낸다. 응답을 기다리는 동안에는 입력을 읽지 않는다.
func (a *app) repl(ctx context.Context, in lineReader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := in.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				a.out.status("Goodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := a.handleCommand(ctx, line); quit {
				return nil
			}
			continue
		}

		if err := a.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (a *app) ask(ctx context.Context, text string) error {
	cs := a.ws.Current()
	if cs == nil {
		a.out.warn("No document is open. Use /new <file> to upload one.")
		return nil
	}

	a.out.thinking()
	msg, err := cs.Ask(ctx, text)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return nil
	case err != nil:
		return err
	}
	a.out.message(msg)
	return nil
}

// handleCommand 는 슬래시 커맨드를 처리한다. 종료해야 하면 true.
func (a *app) handleCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	name := strings.ToLower(parts[0])
	args := parts[1:]

	switch name {
	case "/quit", "/exit", "/q":
		a.out.status("Goodbye!")
		return true
	case "/help", "/h", "/?":
		a.out.help()
	case "/new":
		if len(args) == 0 {
			a.out.warn("Usage: /new <file>")
			return false
		}
		if _, err := a.open(ctx, args); err != nil {
			a.out.fail(err)
		}
	case "/history":
		cs := a.ws.Current()
		if cs == nil {
			a.out.warn("No document is open.")
			return false
		}
		a.out.history(cs.History())
	case "/info":
		a.showInfo(ctx)
	default:
		a.out.warn("Unknown command: %s (use /help for available commands)", name)
	}
	return false
}

func (a *app) showInfo(ctx context.Context) {
	cs := a.ws.Current()
	if cs == nil {
		a.out.warn("No document is open.")
		return
	}
	info, err := a.sessions.GetSession(ctx, cs.ID())
	switch {
	case errors.Is(err, chatclient.ErrNotFound):
		a.out.warn("The server no longer knows this session. Use /new <file> to upload again.")
	case err != nil:
		a.out.fail(err)
	default:
		a.out.sessionInfo(info)
	}
}

func completeInput(line string, cursor int) readline.Completions {
	if cursor > len(line) {
		cursor = len(line)
	}
	text := line[:cursor]
	if !strings.HasPrefix(text, "/") || strings.Contains(text, " ") {
		return readline.Completions{}
	}

	var pairs []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, text) {
			pairs = append(pairs, c.name, c.description)
		}
	}
	if len(pairs) == 0 {
		return readline.Completions{}
	}
	return readline.CompleteValuesDescribed(pairs...).
		Tag("commands").
		NoSpace('/')
}
