// Command trickle is a terminal chat client that reveals streamed markdown
// at a smooth, paced rate.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... trickle [flags] [prompt]
//	GEMINI_API_KEY=gk-...   trickle [flags] [prompt]
//	trickle replay [flags] <glob>...
//	trickle render [flags] <file>
//
// Every flag can also be set with a TRICKLE_ environment variable
// (--flush-duration is TRICKLE_FLUSH_DURATION) or in the --config file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fwojciec/trickle"
	"github.com/fwojciec/trickle/agent"
	bt "github.com/fwojciec/trickle/bubbletea"
	"github.com/fwojciec/trickle/goldmark"
	"github.com/fwojciec/trickle/replay"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Getenv).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "trickle: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:           "trickle [prompt]",
		Short:         "Chat with a language model, revealing markdown as it streams",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), getenv)
			if err != nil {
				return err
			}
			logger, closeLog, err := openLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer closeLog()

			provider, err := resolveProvider(cmd.Context(), providerConfig{
				provider:   cfg.Provider,
				apiKey:     cfg.APIKey,
				model:      cfg.Model,
				thinking:   cfg.Thinking,
				anthropicK: getenv("ANTHROPIC_API_KEY"),
				geminiK:    getenv("GEMINI_API_KEY"),
				logger:     logger,
			})
			if err != nil {
				return err
			}
			session, err := loadOrCreateSession(cfg.Session, cfg.SystemPrompt)
			if err != nil {
				return err
			}

			a := app{cfg: cfg, provider: provider, logger: logger, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			prompt := strings.Join(args, " ")
			if a.plain() {
				if prompt == "" {
					prompt, err = readPrompt(cmd.InOrStdin())
					if err != nil {
						return err
					}
				}
				err = a.plainTurns(cmd.Context(), &session, []string{prompt})
			} else {
				err = a.tui(cmd.Context(), &session, prompt)
			}
			return a.finish(session, cfg.Session, err)
		},
	}
	registerFlags(root.PersistentFlags())
	root.AddCommand(newReplayCmd(getenv), newRenderCmd(getenv))
	return root
}

func newReplayCmd(getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <glob>...",
		Short: "Stream markdown files as if a model were writing them",
		Long: "Replay streams each file matched by the doublestar patterns in small\n" +
			"jittered chunks. In the TUI every message plays the next file; in\n" +
			"plain mode every file is played once.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), getenv)
			if err != nil {
				return err
			}
			logger, closeLog, err := openLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer closeLog()

			opts := []replay.Option{}
			if d, _ := cmd.Flags().GetDuration("delay"); cmd.Flags().Changed("delay") {
				opts = append(opts, replay.WithDelay(d))
			}
			if seed, _ := cmd.Flags().GetUint64("seed"); cmd.Flags().Changed("seed") {
				opts = append(opts, replay.WithSeed(seed))
			}
			provider, err := replay.New(args, opts...)
			if err != nil {
				return err
			}
			logger.Info("replaying", "files", len(provider.Files()))

			session := trickle.Session{ID: "replay", SystemPrompt: "replay"}
			a := app{cfg: cfg, provider: provider, logger: logger, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			if !a.plain() {
				return a.tui(cmd.Context(), &session, "next")
			}
			return a.plainTurns(cmd.Context(), &session, provider.Files())
		},
	}
	cmd.Flags().Duration("delay", 0, "Mean pause between chunks (default 30ms)")
	cmd.Flags().Uint64("seed", 0, "Seed for deterministic chunking")
	return cmd
}

func newRenderCmd(getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a markdown file once, without animation (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd.Flags(), getenv); err != nil {
				return err
			}
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			width, _ := cmd.Flags().GetInt("width")
			if width <= 0 {
				width = terminalWidth()
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), goldmark.Render(string(data), width, trickle.DefaultTheme()))
			return err
		},
	}
	cmd.Flags().Int("width", 0, "Wrap width (default: terminal width)")
	return cmd
}

// app runs conversation turns with a resolved provider.
type app struct {
	cfg      config
	provider trickle.Provider
	logger   *slog.Logger
	out      io.Writer
	errOut   io.Writer
}

// plain reports whether to skip the TUI: requested, or stdout is not a
// terminal.
func (a app) plain() bool {
	if a.cfg.Plain {
		return true
	}
	f, ok := a.out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func (a app) agentFunc() bt.AgentFunc {
	loop := agent.New(a.provider, agent.WithLogger(a.logger))
	model := a.cfg.Model
	return func(ctx context.Context, s *trickle.Session, onEvent func(trickle.Event)) error {
		opts := []agent.RunOption{agent.WithEventHandler(onEvent)}
		if model != "" {
			opts = append(opts, agent.WithModel(model))
		}
		return loop.Run(ctx, s, opts...)
	}
}

func (a app) tui(ctx context.Context, session *trickle.Session, prompt string) error {
	m := bt.New(a.agentFunc(), session, a.cfg.tui(a.logger))
	m.Input.SetValue(prompt)
	if err := bt.Run(ctx, m); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}

// plainTurns sends each prompt as a user message and prints the replies.
func (a app) plainTurns(ctx context.Context, session *trickle.Session, prompts []string) error {
	opts := plainOptions{
		width:  terminalWidth(),
		fps:    a.cfg.FPS,
		theme:  trickle.DefaultTheme(),
		pacing: a.cfg.pacing(),
		logger: a.logger,
	}
	run := a.agentFunc()
	for i, prompt := range prompts {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		session.Messages = append(session.Messages, userMessage(prompt))
		if err := runPlain(ctx, a.out, run, session, opts); err != nil {
			return err
		}
	}
	return nil
}

// finish saves the session and reports runErr. A save failure is reported
// only when the run itself succeeded.
func (a app) finish(session trickle.Session, path string, runErr error) error {
	saved, err := saveSession(path, session)
	if err != nil {
		a.logger.Error("save failed", "error", err)
		if runErr == nil {
			return err
		}
	}
	if saved != "" && path == "" {
		fmt.Fprintf(a.errOut, "Session saved to %s\n", saved)
	}
	return runErr
}

// readPrompt reads the whole prompt from r.
func readPrompt(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("no prompt: pass one as an argument or on stdin")
	}
	return prompt, nil
}

// terminalWidth returns the stdout width, or 80 when it is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
