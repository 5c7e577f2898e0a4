package mock

import (
	"time"

	"github.com/fwojciec/trickle"
)

var _ trickle.FrameScheduler = (*Clock)(nil)

// Clock is a trickle.FrameScheduler driven by synthetic time. Frames fire
// only when the test advances the clock.
type Clock struct {
	Now    time.Time
	frames trickle.FrameQueue
	Fired  int // frames fired so far
}

// NewClock returns a Clock starting at the Unix epoch.
func NewClock() *Clock {
	return &Clock{Now: time.Unix(0, 0)}
}

// RequestFrame queues fn for the next Advance.
func (c *Clock) RequestFrame(fn func(now time.Time)) func() {
	return c.frames.RequestFrame(fn)
}

// Pending reports whether a frame callback is queued.
func (c *Clock) Pending() bool { return c.frames.Pending() }

// Advance moves the clock forward by dt and fires one frame.
func (c *Clock) Advance(dt time.Duration) {
	c.Now = c.Now.Add(dt)
	if c.frames.Fire(c.Now) > 0 {
		c.Fired++
	}
}

// Run advances by dt until no frame is pending or max frames fired.
// It returns the simulated time that passed.
func (c *Clock) Run(dt time.Duration, max int) time.Duration {
	start := c.Now
	for i := 0; i < max && c.frames.Pending(); i++ {
		c.Advance(dt)
	}
	return c.Now.Sub(start)
}
