package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/trickle"
	"github.com/fwojciec/trickle/goldmark"
	"github.com/rivo/uniseg"
)

var _ StreamingBlock = (*AssistantTextBlock)(nil)

// AssistantTextBlock reveals streamed markdown block by block. A Scheduler
// paces the reveal cursor; the revealed prefix is segmented so that stable
// blocks render once per width and only the pending block re-renders on
// each frame.
type AssistantTextBlock struct {
	theme trickle.Theme
	sched *trickle.Scheduler
	seg   *goldmark.Segmenter
	parts []*trickle.Block
	// snap is the byte offset of the last grapheme boundary fed to seg.
	snap int

	cacheWidth int
	cache      map[string]string // stable block id -> rendered
}

// NewAssistantTextBlock creates a block driven by frames.
func NewAssistantTextBlock(frames trickle.FrameScheduler, cfg Config) *AssistantTextBlock {
	cfg = cfg.withDefaults()
	b := &AssistantTextBlock{
		theme: cfg.Theme,
		seg:   goldmark.NewSegmenter(goldmark.WithLogger(cfg.Logger)),
		cache: make(map[string]string),
	}
	b.sched = trickle.NewScheduler(frames, b.reveal, trickle.WithPacing(cfg.Pacing))
	return b
}

// Push queues a text delta.
func (b *AssistantTextBlock) Push(delta string) error { return b.sched.Push(delta) }

// End marks the text complete.
func (b *AssistantTextBlock) End() { b.sched.End() }

// Skip reveals all received text.
func (b *AssistantTextBlock) Skip() { b.sched.Skip() }

// Stop cancels the reveal loop.
func (b *AssistantTextBlock) Stop() { b.sched.Stop() }

// Animating reports whether the reveal loop is running.
func (b *AssistantTextBlock) Animating() bool { return b.sched.State().Running }

// Velocity returns the reveal rate in characters per second.
func (b *AssistantTextBlock) Velocity() float64 { return b.sched.State().Velocity }

// Backlog returns how many received characters are not yet shown.
func (b *AssistantTextBlock) Backlog() int { return b.sched.State().Backlog }

// State returns the reveal state.
func (b *AssistantTextBlock) State() trickle.RevealState { return b.sched.State() }

// Blocks returns the segmented blocks of the visible text.
func (b *AssistantTextBlock) Blocks() []*trickle.Block { return b.parts }

// Visible returns the markdown currently on screen.
func (b *AssistantTextBlock) Visible() string { return b.sched.Content()[:b.snap] }

func (b *AssistantTextBlock) Update(tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *AssistantTextBlock) View(width int) string {
	if width != b.cacheWidth {
		clear(b.cache)
		b.cacheWidth = width
	}
	out := make([]string, 0, len(b.parts))
	for _, p := range b.parts {
		var s string
		if p.Status == trickle.BlockStable {
			var ok bool
			if s, ok = b.cache[p.ID]; !ok {
				s = goldmark.RenderBlock(p, width, b.theme)
				b.cache[p.ID] = s
			}
		} else {
			s = goldmark.RenderBlock(p, width, b.theme)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

func (b *AssistantTextBlock) reveal(st trickle.RevealState) {
	if st.Total == 0 {
		b.snap = 0
		b.parts = nil
		b.seg.Reset()
		clear(b.cache)
		return
	}
	b.parts = b.seg.Process(b.snapped())
}

// snapped returns the revealed prefix cut back to a grapheme cluster
// boundary. The last cluster of the received content is held back until the
// stream ends, since the next delta may extend it.
func (b *AssistantTextBlock) snapped() string {
	content := b.sched.Content()
	revealed := len(b.sched.Revealed())
	if b.snap > revealed {
		b.snap = 0
	}
	ended := b.sched.State().Ended
	rest := content[b.snap:]
	state := -1
	for b.snap < revealed {
		cluster, next, _, st := uniseg.FirstGraphemeClusterInString(rest, state)
		if b.snap+len(cluster) > revealed {
			break
		}
		if next == "" && !ended {
			break
		}
		b.snap += len(cluster)
		rest, state = next, st
	}
	return content[:b.snap]
}
