package snapshot

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/trickle"
)

// RenderFunc turns a markdown snapshot into display output.
type RenderFunc func(markdown string) string

// State is what a Typewriter reports after each frame.
type State struct {
	Shown    string // markdown revealed so far
	Rendered string // output of the last safe-point render
	Backlog  int    // runes received but not yet shown
	Complete bool
}

// Typewriter reveals text at Base runes per frame plus a square-root
// catch-up term, capped at Max, and re-renders only when ShouldFlush
// reports a safe point or the backlog drains.
type Typewriter struct {
	frames   trickle.FrameScheduler
	render   RenderFunc
	onUpdate func(State)
	base     int
	max      int

	remain   string
	backlog  int // runes in remain
	shown    string
	rendered string
	finished bool
	cancel   func()
}

// Option configures a Typewriter.
type Option func(*Typewriter)

// WithRate sets the base and maximum runes revealed per frame.
func WithRate(base, max int) Option {
	return func(t *Typewriter) {
		t.base = base
		t.max = max
	}
}

// NewTypewriter returns a Typewriter that renders with render and reports to
// onUpdate, which may be nil.
func NewTypewriter(frames trickle.FrameScheduler, render RenderFunc, onUpdate func(State), opts ...Option) *Typewriter {
	t := &Typewriter{
		frames:   frames,
		render:   render,
		onUpdate: onUpdate,
		base:     2,
		max:      8,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Push queues chunk for reveal.
func (t *Typewriter) Push(chunk string) error {
	if t.finished {
		return trickle.ErrStreamEnded
	}
	t.remain += chunk
	t.backlog += utf8.RuneCountInString(chunk)
	t.start()
	return nil
}

// Finalize marks the stream ended. The backlog keeps draining at the
// per-frame rate and a final render follows.
func (t *Typewriter) Finalize() {
	t.finished = true
	t.start()
}

// Skip shows the whole backlog at once and renders it.
func (t *Typewriter) Skip() {
	t.shown += t.remain
	t.remain = ""
	t.backlog = 0
	t.rendered = t.render(t.shown)
	if t.finished {
		t.Stop()
	}
	if t.onUpdate != nil {
		t.onUpdate(t.State())
	}
}

// Reset cancels the pending frame and discards everything.
func (t *Typewriter) Reset() {
	t.Stop()
	t.remain = ""
	t.backlog = 0
	t.shown = ""
	t.rendered = ""
	t.finished = false
}

// Stop cancels the pending frame.
func (t *Typewriter) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// State returns the current state.
func (t *Typewriter) State() State {
	return State{
		Shown:    t.shown,
		Rendered: t.rendered,
		Backlog:  t.backlog,
		Complete: t.finished && t.backlog == 0 && t.cancel == nil,
	}
}

// fetch returns how many runes the next frame reveals.
func (t *Typewriter) fetch() int {
	catchUp := int(math.Ceil(math.Sqrt(float64(t.backlog) / 10)))
	return min(t.base+catchUp, t.max)
}

func (t *Typewriter) start() {
	if t.cancel != nil {
		return
	}
	t.cancel = t.frames.RequestFrame(t.tick)
}

func (t *Typewriter) tick(time.Time) {
	t.cancel = nil
	if t.backlog > 0 {
		n := min(t.fetch(), t.backlog)
		cut := 0
		for i := 0; i < n; i++ {
			_, size := utf8.DecodeRuneInString(t.remain[cut:])
			cut += size
		}
		t.shown += t.remain[:cut]
		t.remain = t.remain[cut:]
		t.backlog -= n

		if t.backlog == 0 || ShouldFlush(t.shown) {
			t.rendered = t.render(t.shown)
		}
	}

	if t.backlog > 0 || !t.finished {
		t.cancel = t.frames.RequestFrame(t.tick)
	} else {
		t.rendered = t.render(t.shown)
	}
	if t.onUpdate != nil {
		t.onUpdate(t.State())
	}
}
