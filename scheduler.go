package trickle

import (
	"time"
	"unicode/utf8"
)

// RevealState is the observable state of a Scheduler.
type RevealState struct {
	Cursor   int     // runes revealed
	Total    int     // runes received
	Backlog  int     // Total - Cursor
	Velocity float64 // chars/sec
	Running  bool
	Ended    bool
	Complete bool
}

// Scheduler paces how much of a growing text is revealed. Received text
// drains at a velocity driven by a spring toward backlog/BufferDuration, so
// bursts are smoothed out. After End the remaining backlog is flushed within
// FlushDuration.
//
// Scheduler is not safe for concurrent use. All methods and frame callbacks
// must run on the same goroutine.
type Scheduler struct {
	frames   FrameScheduler
	onUpdate func(RevealState)
	pacing   Pacing

	content string
	total   int // runes in content
	cursor  int // runes revealed
	offset  int // byte offset of cursor in content

	velocity float64
	acc      float64
	lastTick time.Time
	cancel   func()
	running  bool
	ended    bool

	flushing      bool
	flushVelocity float64
	flushElapsed  time.Duration
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPacing overrides the default pacing. Zero durations and stiffness
// keep their defaults.
func WithPacing(p Pacing) SchedulerOption {
	return func(s *Scheduler) { s.pacing = p }
}

// NewScheduler returns a Scheduler driven by frames. onUpdate may be nil.
func NewScheduler(frames FrameScheduler, onUpdate func(RevealState), opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		frames:   frames,
		onUpdate: onUpdate,
		pacing:   DefaultPacing(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pacing = s.pacing.withDefaults()
	return s
}

// Push appends chunk to the content and starts the reveal loop if idle.
func (s *Scheduler) Push(chunk string) error {
	if s.ended {
		return ErrStreamEnded
	}
	if chunk == "" {
		return nil
	}
	s.content += chunk
	s.total += utf8.RuneCountInString(chunk)
	s.start()
	return nil
}

// End marks the stream finished. The remaining backlog drains within the
// flush duration and the final notification has Complete set.
func (s *Scheduler) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.start()
}

// Skip reveals everything received so far.
func (s *Scheduler) Skip() {
	s.cursor = s.total
	s.offset = len(s.content)
	s.acc = 0
	if s.ended {
		s.finish()
		return
	}
	s.notify()
}

// Stop cancels the pending frame without discarding content.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
}

// Reset stops the loop, discards all content and state, and notifies once.
func (s *Scheduler) Reset() {
	s.Stop()
	s.content = ""
	s.total = 0
	s.cursor = 0
	s.offset = 0
	s.velocity = 0
	s.acc = 0
	s.lastTick = time.Time{}
	s.ended = false
	s.flushing = false
	s.flushVelocity = 0
	s.flushElapsed = 0
	s.notify()
}

// State returns the current reveal state.
func (s *Scheduler) State() RevealState {
	return RevealState{
		Cursor:   s.cursor,
		Total:    s.total,
		Backlog:  s.total - s.cursor,
		Velocity: s.velocity,
		Running:  s.running,
		Ended:    s.ended,
		Complete: s.ended && !s.running && s.cursor == s.total,
	}
}

// Content returns all text received so far.
func (s *Scheduler) Content() string { return s.content }

// Revealed returns the prefix of the content up to the reveal cursor.
func (s *Scheduler) Revealed() string { return s.content[:s.offset] }

func (s *Scheduler) start() {
	if s.running {
		return
	}
	s.running = true
	s.lastTick = time.Time{}
	s.cancel = s.frames.RequestFrame(s.tick)
}

func (s *Scheduler) tick(now time.Time) {
	s.cancel = nil
	if !s.running {
		return
	}

	var d time.Duration
	if !s.lastTick.IsZero() {
		d = min(max(now.Sub(s.lastTick), 0), s.pacing.MaxFrameDelta)
	}
	s.lastTick = now
	dt := d.Seconds()

	backlog := s.total - s.cursor
	target := s.target(backlog)
	s.velocity = s.pacing.step(s.velocity, target, dt)
	if s.flushing {
		s.velocity = max(s.velocity, s.flushVelocity)
		s.flushElapsed += d
	}

	s.acc += s.velocity * dt
	n := int(s.acc)
	s.acc -= float64(n)
	if s.flushing && s.flushElapsed >= s.pacing.FlushDuration {
		n = backlog
	}
	if n >= backlog {
		n = backlog
		s.acc = 0
	}
	s.advance(n)

	if s.ended && s.cursor == s.total {
		s.finish()
		return
	}
	s.notify()
	s.cancel = s.frames.RequestFrame(s.tick)
}

// target returns the velocity the spring pulls toward. The first call after
// End latches the flush velocity: the current velocity when it can drain the
// backlog in time, otherwise exactly backlog/FlushDuration.
func (s *Scheduler) target(backlog int) float64 {
	if !s.ended {
		return float64(backlog) / s.pacing.BufferDuration.Seconds()
	}
	if !s.flushing {
		s.flushing = true
		s.flushElapsed = 0
		need := float64(backlog) / s.pacing.FlushDuration.Seconds()
		if float64(backlog) <= s.velocity*s.pacing.FlushDuration.Seconds() {
			need = s.velocity
		}
		s.flushVelocity = need
	}
	return s.flushVelocity
}

func (s *Scheduler) advance(n int) {
	for ; n > 0 && s.offset < len(s.content); n-- {
		_, size := utf8.DecodeRuneInString(s.content[s.offset:])
		s.offset += size
		s.cursor++
	}
}

func (s *Scheduler) finish() {
	s.Stop()
	s.notify()
}

func (s *Scheduler) notify() {
	if s.onUpdate != nil {
		s.onUpdate(s.State())
	}
}
