package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sipeed/picodice/cmd/picodice/internal"
	"github.com/sipeed/picodice/pkg/commands"
	"github.com/sipeed/picodice/pkg/logger"
)

// Owner is the identity console rolls are recorded under.
const Owner = "console"

func NewConsoleCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "console",
		Aliases: []string{"c"},
		Short:   "Roll dice from an interactive terminal session",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := internal.SetupLogging(cfg, debug); err != nil {
				return err
			}
			s := newSession(internal.NewApp(cfg), os.Stdout)
			interactiveMode(s)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

type session struct {
	app *internal.App
	out io.Writer
}

func newSession(app *internal.App, out io.Writer) *session {
	return &session{app: app, out: out}
}

// handle runs one input line. It returns false when the user asked to quit.
// The command prefix is optional at the console.
func (s *session) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		return false
	}

	prefix := s.app.Prefix.Get()
	if !strings.HasPrefix(input, prefix) {
		input = prefix + input
	}

	req := commands.Request{
		Channel:    "console",
		ChatID:     Owner,
		SenderID:   Owner,
		SenderName: Owner,
		MessageID:  uuid.NewString(),
		Text:       input,
		IsAdmin:    true,
		Respond:    s.print,
	}

	res := s.app.Dispatcher.Dispatch(ctx, req)
	switch {
	case !res.Matched:
		fmt.Fprintf(s.out, "Unknown command. Type %shelp for a list of commands.\n", prefix)
	case res.Err != nil && !commands.Reported(res.Err):
		logger.ErrorCF("console", "Command failed", map[string]any{
			"command": res.Command,
			"error":   res.Err.Error(),
		})
		fmt.Fprintf(s.out, "Error: %v\n", res.Err)
	}
	return true
}

func (s *session) print(r commands.Reply) error {
	if r.Private {
		_, err := fmt.Fprintf(s.out, "[private to %s] %s\n", strings.Join(r.Recipients, ", "), r.Text)
		return err
	}
	_, err := fmt.Fprintln(s.out, r.Text)
	return err
}

func interactiveMode(s *session) {
	prompt := fmt.Sprintf("%s ", internal.Logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".picodice_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(s, os.Stdin, prompt)
		return
	}
	defer rl.Close()

	fmt.Fprintf(s.out, "Type %shelp for commands, exit to quit.\n", s.app.Prefix.Get())
	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(s.out, "Error reading input: %v\n", err)
			continue
		}
		if !s.handle(ctx, line) {
			fmt.Fprintln(s.out, "Goodbye!")
			return
		}
	}
}

func simpleInteractiveMode(s *session, in io.Reader, prompt string) {
	reader := bufio.NewScanner(in)
	ctx := context.Background()
	for {
		fmt.Fprint(s.out, prompt)
		if !reader.Scan() {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return
		}
		if !s.handle(ctx, reader.Text()) {
			fmt.Fprintln(s.out, "Goodbye!")
			return
		}
	}
}
