package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/trickle"
	"github.com/fwojciec/trickle/goldmark"
	"github.com/fwojciec/trickle/snapshot"
)

var _ StreamingBlock = (*SnapshotTextBlock)(nil)

// SnapshotTextBlock reveals streamed markdown with a typewriter and
// re-renders the whole shown text at safe points.
type SnapshotTextBlock struct {
	theme  trickle.Theme
	tw     *snapshot.Typewriter
	state  snapshot.State
	pushed bool

	width    int
	source   string // markdown behind rendered
	rendered string
}

// NewSnapshotTextBlock creates a block driven by frames.
func NewSnapshotTextBlock(frames trickle.FrameScheduler, cfg Config) *SnapshotTextBlock {
	cfg = cfg.withDefaults()
	b := &SnapshotTextBlock{theme: cfg.Theme, width: 80}
	b.tw = snapshot.NewTypewriter(frames, b.render, b.update)
	return b
}

func (b *SnapshotTextBlock) Push(delta string) error {
	b.pushed = true
	return b.tw.Push(delta)
}

func (b *SnapshotTextBlock) End()  { b.tw.Finalize() }
func (b *SnapshotTextBlock) Skip() { b.tw.Skip() }
func (b *SnapshotTextBlock) Stop() { b.tw.Stop() }

func (b *SnapshotTextBlock) Animating() bool { return b.pushed && !b.state.Complete }

// Velocity is not tracked by the typewriter.
func (b *SnapshotTextBlock) Velocity() float64 { return 0 }

func (b *SnapshotTextBlock) Backlog() int { return b.state.Backlog }

// Shown returns the markdown revealed so far.
func (b *SnapshotTextBlock) Shown() string { return b.state.Shown }

func (b *SnapshotTextBlock) Update(tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *SnapshotTextBlock) View(width int) string {
	if width != b.width {
		b.width = width
		if b.source != "" {
			b.rendered = goldmark.Render(b.source, width, b.theme)
		}
	}
	return b.rendered
}

func (b *SnapshotTextBlock) render(md string) string {
	b.source = md
	b.rendered = goldmark.Render(md, b.width, b.theme)
	return b.rendered
}

func (b *SnapshotTextBlock) update(st snapshot.State) {
	b.state = st
}
