package trickle

import (
	"math"
	"time"
)

// Pacing tunes the reveal scheduler.
type Pacing struct {
	// BufferDuration is how long the current backlog should take to drain
	// while the stream is live.
	BufferDuration time.Duration
	// FlushDuration bounds how long the remaining backlog takes after End.
	FlushDuration time.Duration
	// MaxFrameDelta caps the simulated time step of a single frame.
	MaxFrameDelta time.Duration

	Stiffness float64
	Damping   float64
	// DampingVelocity is the velocity (chars/sec) at which damping reaches
	// full strength.
	DampingVelocity float64
}

// DefaultPacing returns the standard reveal tuning.
func DefaultPacing() Pacing {
	return Pacing{
		BufferDuration:  3 * time.Second,
		FlushDuration:   2 * time.Second,
		MaxFrameDelta:   100 * time.Millisecond,
		Stiffness:       5.0,
		Damping:         2.5,
		DampingVelocity: 50,
	}
}

// withDefaults fills non-positive durations and stiffness from
// DefaultPacing. Damping and DampingVelocity may legitimately be zero.
func (p Pacing) withDefaults() Pacing {
	d := DefaultPacing()
	if p.BufferDuration <= 0 {
		p.BufferDuration = d.BufferDuration
	}
	if p.FlushDuration <= 0 {
		p.FlushDuration = d.FlushDuration
	}
	if p.MaxFrameDelta <= 0 {
		p.MaxFrameDelta = d.MaxFrameDelta
	}
	if p.Stiffness <= 0 {
		p.Stiffness = d.Stiffness
	}
	return p
}

// step advances velocity v toward target by dt seconds. Damping grows with
// speed, so the spring pulls hard from rest and settles at high velocity.
func (p Pacing) step(v, target, dt float64) float64 {
	spring := p.Stiffness * (target - v)
	ratio := 1.0
	if p.DampingVelocity > 0 {
		ratio = math.Min(v/p.DampingVelocity, 1)
	}
	damping := -p.Damping * v * ratio
	v += (spring + damping) * dt
	return math.Max(v, 0)
}
