package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/trickle"
	trjson "github.com/fwojciec/trickle/json"
	"github.com/google/uuid"
)

const (
	defaultPromptPath   = ".trickle/prompt.md"
	defaultSystemPrompt = "You are a helpful assistant. Answer in markdown."
)

func loadOrCreateSession(sessionPath, promptPath string) (trickle.Session, error) {
	if sessionPath != "" {
		s, err := trjson.Load(sessionPath)
		switch {
		case err == nil:
			return s, nil
		case !errors.Is(err, os.ErrNotExist):
			return trickle.Session{}, fmt.Errorf("load session: %w", err)
		}
		// A missing session file starts a new session saved at that path.
	}

	// Tolerate a missing default prompt; fail on all other errors.
	systemPrompt := defaultSystemPrompt
	data, err := os.ReadFile(promptPath)
	switch {
	case err == nil:
		systemPrompt = string(data)
	case errors.Is(err, os.ErrNotExist) && promptPath == defaultPromptPath:
	default:
		return trickle.Session{}, fmt.Errorf("read system prompt: %w", err)
	}

	now := time.Now()
	return trickle.Session{
		ID:           uuid.NewString(),
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// saveSession writes the session to path, or to the default location when
// path is empty and the session has messages. It returns where it saved.
func saveSession(path string, s trickle.Session) (string, error) {
	if path == "" {
		if len(s.Messages) == 0 {
			return "", nil
		}
		path = defaultSessionPath(s.ID)
	}
	if err := trjson.Save(path, s); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return path, nil
}

func defaultSessionPath(id string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".trickle", "sessions", id+".json")
}

func userMessage(text string) trickle.UserMessage {
	return trickle.UserMessage{
		Content:   []trickle.ContentBlock{trickle.TextBlock{Text: text}},
		Timestamp: time.Now(),
	}
}
