package bubbletea

import tea "github.com/charmbracelet/bubbletea"

// MessageBlock is a renderable element in the conversation.
// Unlike tea.Model, View takes a width parameter so the root model
// controls layout and blocks are testable in isolation.
type MessageBlock interface {
	Update(tea.Msg) (MessageBlock, tea.Cmd)
	View(width int) string
}

// StreamingBlock is a block whose content arrives in deltas and is revealed
// over several frames.
type StreamingBlock interface {
	MessageBlock
	Push(delta string) error
	// End marks the content complete; the backlog still drains.
	End()
	// Skip reveals everything received so far.
	Skip()
	// Stop cancels any pending frame.
	Stop()
	Animating() bool
	Velocity() float64
	Backlog() int
}

// ToggleMsg tells a collapsible block to toggle its collapsed state.
type ToggleMsg struct{}
