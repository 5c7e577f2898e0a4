package trickle

import (
	"maps"
	"slices"
	"time"
)

// FrameScheduler delivers callbacks on the host's next display frame.
// The returned cancel function prevents a not-yet-fired callback from
// running; calling it after the callback fired is a no-op.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) (cancel func())
}

// FrameQueue is a FrameScheduler whose frames are fired explicitly by the
// host. Callbacks requested while firing run on the following frame.
// FrameQueue is not safe for concurrent use.
type FrameQueue struct {
	next    uint64
	pending map[uint64]func(time.Time)
	firing  map[uint64]func(time.Time)
}

// RequestFrame queues fn for the next call to Fire.
func (q *FrameQueue) RequestFrame(fn func(now time.Time)) func() {
	if q.pending == nil {
		q.pending = make(map[uint64]func(time.Time))
	}
	id := q.next
	q.next++
	q.pending[id] = fn
	return func() {
		delete(q.pending, id)
		delete(q.firing, id)
	}
}

// Pending reports whether any callback is waiting for a frame.
func (q *FrameQueue) Pending() bool { return len(q.pending) > 0 }

// Fire runs every queued callback in request order and returns how many ran.
func (q *FrameQueue) Fire(now time.Time) int {
	if len(q.pending) == 0 {
		return 0
	}
	q.firing, q.pending = q.pending, nil
	defer func() { q.firing = nil }()

	ran := 0
	for _, id := range slices.Sorted(maps.Keys(q.firing)) {
		fn, ok := q.firing[id]
		if !ok {
			continue // cancelled by an earlier callback in this frame
		}
		delete(q.firing, id)
		fn(now)
		ran++
	}
	return ran
}

var _ FrameScheduler = (*FrameQueue)(nil)
