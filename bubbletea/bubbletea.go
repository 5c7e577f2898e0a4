// Package bubbletea provides a Bubble Tea TUI that reveals streamed
// assistant markdown at a paced rate.
package bubbletea

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/trickle"
)

// Renderer names accepted by Config.Renderer.
const (
	RendererBlocks   = "blocks"
	RendererSnapshot = "snapshot"
)

// AgentFunc runs one assistant turn. The onEvent callback is called for each
// streaming event. The function blocks until the turn completes or the
// context is cancelled.
type AgentFunc func(ctx context.Context, session *trickle.Session, onEvent func(trickle.Event)) error

// Config controls rendering and pacing.
type Config struct {
	Theme  trickle.Theme
	Pacing trickle.Pacing
	// FPS is the frame rate of the reveal animation.
	FPS int
	// Renderer selects incremental block rendering or full-snapshot
	// rendering at safe points.
	Renderer string
	Logger   *slog.Logger
}

// DefaultConfig returns the default theme and pacing at 60 frames per second
// with the block renderer.
func DefaultConfig() Config {
	return Config{
		Theme:    trickle.DefaultTheme(),
		Pacing:   trickle.DefaultPacing(),
		FPS:      60,
		Renderer: RendererBlocks,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Pacing == (trickle.Pacing{}) {
		c.Pacing = d.Pacing
	}
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	if c.Renderer == "" {
		c.Renderer = d.Renderer
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. When ctx is cancelled the program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// StreamEventMsg wraps a streaming event for delivery to the Bubble Tea model.
type StreamEventMsg struct {
	Event trickle.Event
}

// AgentDoneMsg signals that the agent turn has completed.
type AgentDoneMsg struct {
	Err error
}
