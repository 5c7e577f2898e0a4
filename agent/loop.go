// Package agent runs assistant turns against a trickle.Provider.
package agent

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/trickle"
)

// Loop streams assistant responses into a session.
type Loop struct {
	provider trickle.Provider
	logger   *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for turn diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// New creates a new Loop with the given provider.
func New(provider trickle.Provider, opts ...Option) *Loop {
	l := &Loop{
		provider: provider,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent func(trickle.Event)
	model   string
}

// WithEventHandler sets a callback that receives each streaming event during
// the run. If nil or not set, events are silently discarded.
func WithEventHandler(h func(trickle.Event)) RunOption {
	return func(c *runConfig) {
		c.onEvent = h
	}
}

// WithModel sets the model ID for provider requests during this run.
// Empty string means the provider uses its default model.
func WithModel(model string) RunOption {
	return func(c *runConfig) {
		c.model = model
	}
}

// Run streams one assistant response for the session's conversation and
// appends it to session.Messages. A partial message is appended when the
// stream fails mid-way, and the stream error is returned.
func (l *Loop) Run(ctx context.Context, session *trickle.Session, opts ...RunOption) error {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := trickle.Request{
		Model:        cfg.model,
		SystemPrompt: session.SystemPrompt,
		Messages:     session.Messages,
	}

	start := time.Now()
	stream, err := l.provider.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	var streamErr error
	events := 0
	for {
		evt, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		events++
		if cfg.onEvent != nil {
			cfg.onEvent(evt)
		}
	}

	// Get the assembled message (partial or complete).
	msg, msgErr := stream.Message()
	if msgErr != nil {
		if streamErr != nil {
			return streamErr
		}
		return msgErr
	}

	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now()

	l.logger.Info("turn finished",
		"model", cfg.model,
		"events", events,
		"stop_reason", string(msg.StopReason),
		"output_tokens", msg.Usage.OutputTokens,
		"elapsed", time.Since(start),
	)
	if streamErr != nil {
		l.logger.Warn("stream failed", "error", streamErr)
	}
	return streamErr
}
