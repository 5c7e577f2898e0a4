package bubbletea

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/trickle"
)

var _ trickle.FrameScheduler = (*Frames)(nil)

// FrameMsg carries the time of a display frame.
type FrameMsg struct {
	Time time.Time
}

// Frames hosts reveal animations inside the Bubble Tea event loop. Callbacks
// queue until the model handles the next FrameMsg, so schedulers only ever
// run inside Update.
type Frames struct {
	queue     trickle.FrameQueue
	interval  time.Duration
	scheduled bool
}

// NewFrames returns Frames ticking at fps frames per second.
func NewFrames(fps int) *Frames {
	if fps <= 0 {
		fps = 60
	}
	return &Frames{interval: time.Second / time.Duration(fps)}
}

// RequestFrame queues fn for the next frame.
func (f *Frames) RequestFrame(fn func(now time.Time)) func() {
	return f.queue.RequestFrame(fn)
}

// Schedule returns a command that delivers the next FrameMsg. It returns nil
// when nothing is waiting for a frame or a tick is already in flight.
func (f *Frames) Schedule() tea.Cmd {
	if f.scheduled || !f.queue.Pending() {
		return nil
	}
	f.scheduled = true
	return tea.Tick(f.interval, func(t time.Time) tea.Msg { return FrameMsg{Time: t} })
}

// Fire runs the callbacks queued for this frame.
func (f *Frames) Fire(now time.Time) int {
	f.scheduled = false
	return f.queue.Fire(now)
}
