package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fwojciec/trickle"
	"github.com/fwojciec/trickle/anthropic"
	"github.com/fwojciec/trickle/gemini"
)

// providerConfig holds the values provider selection depends on. Env var
// values are passed in; env is only read in main.
type providerConfig struct {
	provider   string
	apiKey     string
	model      string
	thinking   int
	anthropicK string
	geminiK    string
	logger     *slog.Logger
}

// resolveProvider selects and constructs the provider.
func resolveProvider(ctx context.Context, pc providerConfig) (trickle.Provider, error) {
	provider := pc.provider
	if pc.logger == nil {
		pc.logger = slog.New(slog.DiscardHandler)
	}

	// Auto-detect from env vars if no flag.
	if provider == "" {
		hasAnthropic := pc.anthropicK != ""
		hasGemini := pc.geminiK != ""
		switch {
		case hasAnthropic && hasGemini:
			return nil, fmt.Errorf("multiple API keys found (ANTHROPIC_API_KEY, GEMINI_API_KEY): use --provider to select")
		case hasAnthropic:
			provider = "anthropic"
		case hasGemini:
			provider = "gemini"
		default:
			return nil, fmt.Errorf("no API key found: set ANTHROPIC_API_KEY or GEMINI_API_KEY (or use --provider and --api-key)")
		}
	}

	// Explicit flag overrides env var.
	key := pc.apiKey
	switch provider {
	case "anthropic":
		if key == "" {
			key = pc.anthropicK
		}
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set (use --api-key or the environment variable)")
		}
		opts := []anthropic.Option{anthropic.WithLogger(pc.logger)}
		if pc.thinking > 0 {
			opts = append(opts, anthropic.WithThinking(pc.thinking))
		}
		return anthropic.New(key, opts...), nil
	case "gemini":
		if key == "" {
			key = pc.geminiK
		}
		if key == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set (use --api-key or the environment variable)")
		}
		if pc.thinking > 0 {
			pc.logger.Warn("thinking budget ignored", "provider", provider)
		}
		var opts []gemini.Option
		if pc.model != "" {
			opts = append(opts, gemini.WithModel(pc.model))
		}
		client, err := gemini.New(ctx, key, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q: must be \"anthropic\" or \"gemini\"", provider)
	}
}
