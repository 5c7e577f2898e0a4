package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/fwojciec/trickle"
)

var _ StreamingBlock = (*ThinkingBlock)(nil)

// ThinkingBlock renders model reasoning as plain faint text behind a
// collapsible header. The text is paced like assistant output.
type ThinkingBlock struct {
	sched     *trickle.Scheduler
	collapsed bool
	styles    Styles
}

// NewThinkingBlock creates a ThinkingBlock that starts collapsed.
func NewThinkingBlock(frames trickle.FrameScheduler, cfg Config) *ThinkingBlock {
	cfg = cfg.withDefaults()
	b := &ThinkingBlock{collapsed: true, styles: NewStyles(cfg.Theme)}
	b.sched = trickle.NewScheduler(frames, nil, trickle.WithPacing(cfg.Pacing))
	return b
}

func (b *ThinkingBlock) Push(delta string) error { return b.sched.Push(delta) }
func (b *ThinkingBlock) End()                    { b.sched.End() }
func (b *ThinkingBlock) Skip()                   { b.sched.Skip() }
func (b *ThinkingBlock) Stop()                   { b.sched.Stop() }
func (b *ThinkingBlock) Animating() bool         { return b.sched.State().Running }
func (b *ThinkingBlock) Velocity() float64       { return b.sched.State().Velocity }
func (b *ThinkingBlock) Backlog() int            { return b.sched.State().Backlog }

// Collapsed reports whether only the header is shown.
func (b *ThinkingBlock) Collapsed() bool { return b.collapsed }

func (b *ThinkingBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *ThinkingBlock) View(width int) string {
	wrap := lipgloss.NewStyle().Width(width)

	indicator := "▶"
	if !b.collapsed {
		indicator = "▼"
	}
	header := b.styles.Thinking.Render(wrap.Render(indicator + " Thinking"))
	if b.collapsed {
		return header
	}
	text := ansi.Strip(b.sched.Revealed())
	if text == "" {
		return header
	}
	return header + "\n" + b.styles.Thinking.Render(wrap.Render(text))
}
