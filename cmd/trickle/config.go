package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fwojciec/trickle"
	bt "github.com/fwojciec/trickle/bubbletea"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TRICKLE"

// config is the resolved command configuration. Values come from flags,
// TRICKLE_* environment variables and the optional config file, in that
// order of precedence.
type config struct {
	Provider       string
	Model          string
	APIKey         string
	Session        string
	SystemPrompt   string
	BufferDuration time.Duration
	FlushDuration  time.Duration
	FPS            int
	Renderer       string
	Log            string
	Plain          bool
	Thinking       int
}

// registerFlags declares the flags shared by every subcommand.
func registerFlags(fs *pflag.FlagSet) {
	p := trickle.DefaultPacing()
	fs.String("config", "", "Path to a YAML config file")
	fs.String("provider", "", "Provider: anthropic, gemini (auto-detected from env vars if omitted)")
	fs.String("model", "", "Model ID (provider-specific)")
	fs.String("api-key", "", "API key (overrides the provider's env var)")
	fs.String("session", "", "Path to session file to resume and save")
	fs.String("system-prompt", defaultPromptPath, "Path to system prompt file")
	fs.Duration("buffer-duration", p.BufferDuration, "Backlog the reveal aims to keep while streaming")
	fs.Duration("flush-duration", p.FlushDuration, "Upper bound on draining the backlog after the stream ends")
	fs.Int("fps", 60, "Reveal frame rate")
	fs.String("renderer", bt.RendererBlocks, "Renderer: blocks, snapshot")
	fs.String("log", "", "Write JSON logs to this file")
	fs.Bool("plain", false, "Print blocks as they become stable instead of running the TUI")
	fs.Int("thinking", 0, "Extended thinking token budget (anthropic, 0 disables)")
}

// loadConfig binds fs to a fresh viper instance and resolves the config.
// getenv is consulted for TRICKLE_* variables.
func loadConfig(fs *pflag.FlagSet, getenv func(string) string) (config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return config{}, fmt.Errorf("bind flags: %w", err)
	}
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		if val := getenv(envName(f.Name)); val != "" {
			v.Set(f.Name, val)
		}
	})
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := config{
		Provider:       v.GetString("provider"),
		Model:          v.GetString("model"),
		APIKey:         v.GetString("api-key"),
		Session:        v.GetString("session"),
		SystemPrompt:   v.GetString("system-prompt"),
		BufferDuration: v.GetDuration("buffer-duration"),
		FlushDuration:  v.GetDuration("flush-duration"),
		FPS:            v.GetInt("fps"),
		Renderer:       v.GetString("renderer"),
		Log:            v.GetString("log"),
		Plain:          v.GetBool("plain"),
		Thinking:       v.GetInt("thinking"),
	}
	return cfg, cfg.validate()
}

// envName maps a flag name to its environment variable.
func envName(flag string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func (c config) validate() error {
	switch {
	case c.BufferDuration <= 0:
		return fmt.Errorf("buffer-duration must be positive, got %s", c.BufferDuration)
	case c.FlushDuration <= 0:
		return fmt.Errorf("flush-duration must be positive, got %s", c.FlushDuration)
	case c.FPS <= 0:
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	case c.Thinking < 0:
		return fmt.Errorf("thinking budget must not be negative, got %d", c.Thinking)
	}
	switch c.Renderer {
	case bt.RendererBlocks, bt.RendererSnapshot:
	default:
		return fmt.Errorf("unknown renderer %q: must be %q or %q", c.Renderer, bt.RendererBlocks, bt.RendererSnapshot)
	}
	return nil
}

func (c config) pacing() trickle.Pacing {
	p := trickle.DefaultPacing()
	p.BufferDuration = c.BufferDuration
	p.FlushDuration = c.FlushDuration
	return p
}

func (c config) tui(logger *slog.Logger) bt.Config {
	cfg := bt.DefaultConfig()
	cfg.Pacing = c.pacing()
	cfg.FPS = c.FPS
	cfg.Renderer = c.Renderer
	cfg.Logger = logger
	return cfg
}

// openLogger returns a JSON logger writing to path, or a discarding logger
// when path is empty. The returned close func is never nil.
func openLogger(path string) (*slog.Logger, func() error, error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), f.Close, nil
}
