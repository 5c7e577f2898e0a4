package bubbletea_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/fwojciec/trickle"
	bt "github.com/fwojciec/trickle/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	m := bt.New(nopAgent, &trickle.Session{}, bt.Config{})

	assert.False(t, m.Running())
	assert.NoError(t, m.Err())
	assert.Equal(t, "Initializing...", m.View())
}

func TestModel_Update(t *testing.T) {
	t.Parallel()

	t.Run("window size sizes viewport", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		assert.Equal(t, 80, m.Viewport.Width)
		assert.Equal(t, 20, m.Viewport.Height) // 24 - input - status - 2 separators

		m = updateModel(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
		assert.Equal(t, 120, m.Viewport.Width)
		assert.Equal(t, 36, m.Viewport.Height)
	})

	t.Run("resize re-renders content", func(t *testing.T) {
		t.Parallel()
		m := initModelWithSize(t, nopAgent, 30, 20)
		longLine := "word1 word2 word3 word4 word5 word6 word7 word8"
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Delta: longLine + "\n"}})
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})

		m = updateModel(t, m, tea.WindowSizeMsg{Width: 120, Height: 20})

		found := false
		for _, line := range strings.Split(m.Viewport.View(), "\n") {
			if strings.Contains(line, "word1") && strings.Contains(line, "word8") {
				found = true
			}
		}
		assert.True(t, found, "expected one line at 120 columns, got:\n%s", m.Viewport.View())
	})

	t.Run("ctrl+c when idle quits", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		_, isQuit := cmd().(tea.QuitMsg)
		assert.True(t, isQuit)
	})

	t.Run("ctrl+c when running cancels", func(t *testing.T) {
		t.Parallel()
		cancelled := false
		m := bt.SetRunning(initModel(t, nopAgent), func() { cancelled = true })
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		assert.Nil(t, cmd)
		assert.True(t, cancelled)
	})

	t.Run("enter with empty input does nothing", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
		assert.False(t, updated.(bt.Model).Running())
	})

	t.Run("enter submits input and starts a turn", func(t *testing.T) {
		t.Parallel()
		session := &trickle.Session{}
		m := updateModel(t, bt.New(nopAgent, session, bt.DefaultConfig()), tea.WindowSizeMsg{Width: 80, Height: 24})
		m.Input.SetValue("  hello  ")

		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = updated.(bt.Model)

		assert.NotNil(t, cmd)
		assert.True(t, m.Running())
		assert.Empty(t, m.Input.Value())
		require.Len(t, session.Messages, 1)
		assert.Equal(t, trickle.RoleUser, session.Messages[0].Role())
		assert.Contains(t, ansi.Strip(bt.RenderContent(m)), "> hello")
	})
}

func TestModel_Streaming(t *testing.T) {
	t.Parallel()

	t.Run("text deltas reveal over frames", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Index: 0, Delta: "Hello "}})
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Index: 0, Delta: "streamed world."}})

		require.Len(t, m.Blocks(), 1)
		assert.True(t, m.Animating())
		assert.NotContains(t, bt.RenderContent(m), "world")

		m = updateModel(t, m, bt.AgentDoneMsg{})
		start := time.Unix(100, 0)
		m = runFrames(t, m, start, 50*time.Millisecond, 60)

		assert.False(t, m.Animating())
		assert.Contains(t, ansi.Strip(bt.RenderContent(m)), "Hello streamed world.")
	})

	t.Run("esc skips the animation", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Delta: "# Heading\n\nBody.\n"}})
		m = updateModel(t, m, bt.AgentDoneMsg{})
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})

		assert.False(t, m.Animating())
		out := ansi.Strip(bt.RenderContent(m))
		assert.Contains(t, out, "Heading")
		assert.Contains(t, out, "Body.")
	})

	t.Run("separate indices make separate blocks", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventThinkingDelta{Index: 0, Delta: "hmm"}})
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Index: 1, Delta: "answer"}})
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Index: 1, Delta: " more"}})

		require.Len(t, m.Blocks(), 2)
		assert.IsType(t, &bt.ThinkingBlock{}, m.Blocks()[0])
		assert.IsType(t, &bt.AssistantTextBlock{}, m.Blocks()[1])
		assert.Equal(t, 0, bt.BlockFocus(m))
	})

	t.Run("snapshot renderer", func(t *testing.T) {
		t.Parallel()
		cfg := bt.DefaultConfig()
		cfg.Renderer = bt.RendererSnapshot
		m := updateModel(t, bt.New(nopAgent, &trickle.Session{}, cfg), tea.WindowSizeMsg{Width: 80, Height: 24})
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Delta: "snap **shot**"}})

		require.Len(t, m.Blocks(), 1)
		assert.IsType(t, &bt.SnapshotTextBlock{}, m.Blocks()[0])

		m = updateModel(t, m, bt.AgentDoneMsg{})
		m = runFrames(t, m, time.Unix(0, 0), frame, 20)
		assert.Contains(t, ansi.Strip(bt.RenderContent(m)), "snap shot")
	})

	t.Run("agent error is shown", func(t *testing.T) {
		t.Parallel()
		m := bt.SetRunning(initModel(t, nopAgent), nil)
		m = updateModel(t, m, bt.AgentDoneMsg{Err: errors.New("boom")})

		assert.False(t, m.Running())
		assert.EqualError(t, m.Err(), "boom")
		assert.Contains(t, bt.RenderContent(m), "boom")
		assert.Contains(t, bt.StatusLine(m), "Error: boom")
	})

	t.Run("cancellation is not an error", func(t *testing.T) {
		t.Parallel()
		m := bt.SetRunning(initModel(t, nopAgent), nil)
		m = updateModel(t, m, bt.AgentDoneMsg{Err: context.Canceled})
		assert.NoError(t, m.Err())
	})

	t.Run("tab toggles the focused thinking block", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventThinkingDelta{Delta: "inner voice"}})
		m = updateModel(t, m, bt.AgentDoneMsg{})
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		assert.NotContains(t, bt.RenderContent(m), "inner voice")

		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyTab})
		assert.Contains(t, bt.RenderContent(m), "inner voice")
	})
}

func TestModel_RestoredSession(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	cfg := bt.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	session := &trickle.Session{Messages: []trickle.Message{
		trickle.UserMessage{Content: []trickle.ContentBlock{trickle.TextBlock{Text: "question"}}},
		trickle.AssistantMessage{Content: []trickle.ContentBlock{
			trickle.ThinkingBlock{Thinking: "pondering"},
			trickle.TextBlock{Text: "# Answer\n\nAll of it, at once."},
		}},
	}}
	m := updateModel(t, bt.New(nopAgent, session, cfg), tea.WindowSizeMsg{Width: 80, Height: 24})

	require.Len(t, m.Blocks(), 3)
	assert.False(t, m.Animating())
	out := ansi.Strip(bt.RenderContent(m))
	assert.Contains(t, out, "Answer")
	assert.Contains(t, out, "All of it, at once.")
	assert.NotContains(t, logs.String(), "dropped")
}

func TestModel_StatusLine(t *testing.T) {
	t.Parallel()

	t.Run("idle hint", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, bt.StatusLine(initModel(t, nopAgent)), "Enter to send")
	})

	t.Run("shows velocity while animating", func(t *testing.T) {
		t.Parallel()
		m := initModel(t, nopAgent)
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Delta: strings.Repeat("word ", 200)}})
		m = runFrames(t, m, time.Unix(0, 0), 50*time.Millisecond, 10)

		line := bt.StatusLine(m)
		assert.Contains(t, line, "chars/s")
		assert.Contains(t, line, "Esc to skip")
	})

	t.Run("truncated to width", func(t *testing.T) {
		t.Parallel()
		m := initModelWithSize(t, nopAgent, 12, 10)
		m = updateModel(t, m, bt.StreamEventMsg{Event: trickle.EventTextDelta{Delta: "some text"}})
		line := ansi.Strip(bt.StatusLine(m))
		assert.LessOrEqual(t, ansi.StringWidth(line), 12)
		assert.True(t, strings.HasSuffix(line, "…"))
	})
}

func TestModel_Teatest(t *testing.T) {
	t.Parallel()

	t.Run("full agent cycle with event delivery", func(t *testing.T) {
		t.Parallel()

		agent := func(_ context.Context, session *trickle.Session, onEvent func(trickle.Event)) error {
			onEvent(trickle.EventTextDelta{Index: 0, Delta: "Hello!"})
			session.Messages = append(session.Messages, trickle.AssistantMessage{
				Content:    []trickle.ContentBlock{trickle.TextBlock{Text: "Hello!"}},
				StopReason: trickle.StopEndTurn,
			})
			return nil
		}

		session := &trickle.Session{}
		cfg := bt.DefaultConfig()
		cfg.Pacing.FlushDuration = 200 * time.Millisecond
		m := bt.New(agent, session, cfg)

		tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

		tm.Type("hi")
		tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("Hello!")) &&
				bytes.Contains(out, []byte("Enter to send"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})

		fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
		final, ok := fm.(bt.Model)
		require.True(t, ok)
		assert.False(t, final.Running())
		assert.NoError(t, final.Err())
		assert.Len(t, session.Messages, 2)
	})

	t.Run("existing session renders without animation", func(t *testing.T) {
		t.Parallel()

		session := &trickle.Session{
			Messages: []trickle.Message{
				trickle.UserMessage{Content: []trickle.ContentBlock{trickle.TextBlock{Text: "hello there"}}},
				trickle.AssistantMessage{Content: []trickle.ContentBlock{
					trickle.ThinkingBlock{Thinking: "considering"},
					trickle.TextBlock{Text: "Hi! How can I help?"},
				}},
			},
		}
		m := bt.New(nopAgent, session, bt.DefaultConfig())

		tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

		teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
			return bytes.Contains(out, []byte("hello there")) &&
				bytes.Contains(out, []byte("How can I help?"))
		}, teatest.WithDuration(5*time.Second))

		tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
		fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
		final := fm.(bt.Model)
		assert.False(t, final.Animating())
		assert.Len(t, final.Blocks(), 3)
	})
}
