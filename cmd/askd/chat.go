package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/askd/internal/engine"
	"github.com/fyrsmithlabs/askd/internal/memory"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatHelp is both the command's long help and the /help reply.
const chatHelp = `Start an interactive conversation. Lines starting with / are commands:

  /mode <default|rag|web_search>        change the answer mode
  /provider <openai|anthropic|groq|ollama>
  /embedding <huggingface|ollama|openai|hash>
  /memory <transient|persistent>
  /filter <on|off>                      toggle the privacy filter
  /new                                  start a new session
  /load <id>                            resume a stored session
  /sessions                             list stored sessions
  /delete <id>                          delete a stored session
  /clear                                delete every stored session
  /status                               show the current configuration
  /help                                 show this help
  /quit                                 leave the chat`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long:  chatHelp,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		return runChat(cmd.Context(), rt.engine, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chatEngine is the part of the engine the REPL drives.
type chatEngine interface {
	ProcessQuery(ctx context.Context, raw string) engine.Response
	ChangeAnswerMode(ctx context.Context, value string) error
	ChangeModelProvider(ctx context.Context, value string) error
	ChangeEmbeddingProvider(ctx context.Context, value string) error
	ChangeMemoryMode(ctx context.Context, value string) error
	ToggleFilter(ctx context.Context, enabled bool) error
	CreateNewSession() string
	LoadSession(ctx context.Context, id string) error
	AllSessions(ctx context.Context) ([]memory.Summary, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	ClearAllSessions(ctx context.Context) error
	Status() engine.Status
}

var errQuit = errors.New("quit")

// runChat reads lines from in until EOF, /quit or ctx is done.
func runChat(ctx context.Context, eng chatEngine, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, dimStyle.Render("askd chat. Type /help for commands, /quit to leave."))
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if name, arg, ok := parseCommand(line); ok {
			err := handleCommand(ctx, eng, out, name, arg)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
			}
			continue
		}

		renderResponse(out, eng.ProcessQuery(ctx, line))
	}
}

// parseCommand splits "/name arg" into its parts.
func parseCommand(line string) (name, arg string, ok bool) {
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg), name != ""
}

func handleCommand(ctx context.Context, eng chatEngine, out io.Writer, name, arg string) error {
	needArg := func(usage string) error {
		if arg == "" {
			return fmt.Errorf("usage: /%s %s", name, usage)
		}
		return nil
	}

	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(out, chatHelp)
		return nil
	case "status":
		renderStatus(out, eng.Status())
		return nil
	case "mode":
		if err := needArg("<default|rag|web_search>"); err != nil {
			return err
		}
		return confirm(out, eng.ChangeAnswerMode(ctx, arg), "answer mode is now %s", eng.Status().AnswerMode)
	case "provider":
		if err := needArg("<openai|anthropic|groq|ollama>"); err != nil {
			return err
		}
		return confirm(out, eng.ChangeModelProvider(ctx, arg), "model provider is now %s", eng.Status().ModelProvider)
	case "embedding":
		if err := needArg("<huggingface|ollama|openai|hash>"); err != nil {
			return err
		}
		return confirm(out, eng.ChangeEmbeddingProvider(ctx, arg), "embedding provider is now %s", eng.Status().EmbeddingProvider)
	case "memory":
		if err := needArg("<transient|persistent>"); err != nil {
			return err
		}
		return confirm(out, eng.ChangeMemoryMode(ctx, arg), "memory mode is now %s", eng.Status().MemoryMode)
	case "filter":
		var enabled bool
		switch strings.ToLower(arg) {
		case "on", "true", "enable":
			enabled = true
		case "off", "false", "disable":
		default:
			return fmt.Errorf("usage: /filter <on|off>")
		}
		return confirm(out, eng.ToggleFilter(ctx, enabled), "privacy filter %s", strings.ToLower(arg))
	case "new":
		id := eng.CreateNewSession()
		fmt.Fprintln(out, okStyle.Render("started session "+id))
		return nil
	case "load":
		if err := needArg("<session-id>"); err != nil {
			return err
		}
		if err := eng.LoadSession(ctx, arg); err != nil {
			if errors.Is(err, memory.ErrTransientMode) {
				return fmt.Errorf("switch to persistent memory first (/memory persistent)")
			}
			return err
		}
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("loaded session %s (%d messages)", arg, eng.Status().BufferLen)))
		return nil
	case "sessions":
		sessions, err := eng.AllSessions(ctx)
		if err != nil {
			return err
		}
		renderSessions(out, sessions)
		return nil
	case "delete":
		if err := needArg("<session-id>"); err != nil {
			return err
		}
		existed, err := eng.DeleteSession(ctx, arg)
		if err != nil {
			return err
		}
		if !existed {
			fmt.Fprintln(out, dimStyle.Render("no session "+arg))
			return nil
		}
		fmt.Fprintln(out, okStyle.Render("deleted session "+arg))
		return nil
	case "clear":
		return confirm(out, eng.ClearAllSessions(ctx), "all sessions deleted")
	}
	return fmt.Errorf("unknown command /%s (try /help)", name)
}

// confirm prints a success line when err is nil. Call arguments evaluate left
// to right, so args read after the change that produced err.
func confirm(out io.Writer, err error, format string, args ...interface{}) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf(format, args...)))
	return nil
}
