package bubbletea_test

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/trickle"
	bt "github.com/fwojciec/trickle/bubbletea"
	"github.com/fwojciec/trickle/goldmark"
	"github.com/fwojciec/trickle/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = "# Title\n\nFirst paragraph with **bold** text.\n\n- one\n- two\n\n```go\nfmt.Println(\"hi\")\n```\n\nLast line.\n"

func TestAssistantTextBlock(t *testing.T) {
	t.Parallel()

	t.Run("reveals the whole stream after end", func(t *testing.T) {
		t.Parallel()
		clock := mock.NewClock()
		b := bt.NewAssistantTextBlock(clock, bt.DefaultConfig())

		for _, chunk := range strings.SplitAfter(doc, " ") {
			require.NoError(t, b.Push(chunk))
		}
		b.End()
		clock.Run(frame, 1000)

		st := b.State()
		assert.True(t, st.Complete)
		assert.Equal(t, doc, b.Visible())
		assert.True(t, clock.Now.Sub(time.Unix(0, 0)) <= 2*time.Second+2*frame, "flush is bounded")
		assert.False(t, b.Animating())
	})

	t.Run("view matches a one-shot render", func(t *testing.T) {
		t.Parallel()
		clock := mock.NewClock()
		cfg := bt.DefaultConfig()
		b := bt.NewAssistantTextBlock(clock, cfg)
		require.NoError(t, b.Push(doc))
		b.End()
		b.Skip()

		assert.Equal(t, goldmark.Render(doc, 60, cfg.Theme), b.View(60))
		assert.Equal(t, goldmark.Render(doc, 30, cfg.Theme), b.View(30), "re-rendered at new width")
	})

	t.Run("only the last block is pending", func(t *testing.T) {
		t.Parallel()
		clock := mock.NewClock()
		b := bt.NewAssistantTextBlock(clock, bt.DefaultConfig())
		require.NoError(t, b.Push("# A\n\nB para\n\nC para tail"))
		b.Skip()

		blocks := b.Blocks()
		require.NotEmpty(t, blocks)
		for _, blk := range blocks[:len(blocks)-1] {
			assert.Equal(t, trickle.BlockStable, blk.Status)
		}
		assert.Equal(t, trickle.BlockPending, blocks[len(blocks)-1].Status)
	})

	t.Run("reveal is snapped to grapheme clusters", func(t *testing.T) {
		t.Parallel()
		clock := mock.NewClock()
		b := bt.NewAssistantTextBlock(clock, bt.DefaultConfig())

		require.NoError(t, b.Push("ab👍"))
		b.Skip()
		assert.Equal(t, "ab", b.Visible(), "trailing cluster may still grow")

		require.NoError(t, b.Push("🏽 ok"))
		b.Skip()
		assert.Equal(t, "ab👍🏽 o", b.Visible())

		b.End()
		b.Skip()
		assert.Equal(t, "ab👍🏽 ok", b.Visible())
	})

	t.Run("partial reveal never splits a cluster", func(t *testing.T) {
		t.Parallel()
		clock := mock.NewClock()
		b := bt.NewAssistantTextBlock(clock, bt.DefaultConfig())
		const text = "éééééééé"
		require.NoError(t, b.Push(text))
		b.End()
		for clock.Pending() {
			clock.Advance(frame)
			assert.Zero(t, len(b.Visible())%len("é"), "visible %q", b.Visible())
		}
		assert.Equal(t, text, b.Visible())
	})

	t.Run("push after end is rejected", func(t *testing.T) {
		t.Parallel()
		b := bt.NewAssistantTextBlock(mock.NewClock(), bt.DefaultConfig())
		b.End()
		assert.ErrorIs(t, b.Push("late"), trickle.ErrStreamEnded)
	})

	t.Run("escape sequences never reach the view", func(t *testing.T) {
		t.Parallel()
		b := bt.NewAssistantTextBlock(mock.NewClock(), bt.DefaultConfig())
		require.NoError(t, b.Push("safe \x1b[31mred\x1b[0m text"))
		b.End()
		b.Skip()
		assert.Contains(t, ansi.Strip(b.View(80)), "safe red text")
		assert.NotContains(t, b.View(80), "\x1b[31m")
	})
}

func TestSnapshotTextBlock(t *testing.T) {
	t.Parallel()

	t.Run("renders at safe points and on end", func(t *testing.T) {
		t.Parallel()
		clock := mock.NewClock()
		cfg := bt.DefaultConfig()
		b := bt.NewSnapshotTextBlock(clock, cfg)

		require.NoError(t, b.Push(doc))
		assert.True(t, b.Animating())
		b.End()
		clock.Run(frame, 10000)

		assert.False(t, b.Animating())
		assert.Equal(t, doc, b.Shown())
		assert.Equal(t, goldmark.Render(doc, 70, cfg.Theme), b.View(70))
	})

	t.Run("skip renders everything", func(t *testing.T) {
		t.Parallel()
		clock := mock.NewClock()
		b := bt.NewSnapshotTextBlock(clock, bt.DefaultConfig())
		require.NoError(t, b.Push("**done**"))
		b.End()
		b.Skip()

		assert.Equal(t, 0, b.Backlog())
		assert.Contains(t, ansi.Strip(b.View(40)), "done")
		assert.False(t, clock.Pending())
	})
}
