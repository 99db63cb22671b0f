package cooler

import "math"

// Ramp generates a setpoint trajectory that moves from a starting
// temperature to a target at a bounded rate, so the CCD is never asked to
// change temperature faster than the hardware tolerates.
type Ramp struct {
	// RatePerMinute is the maximum allowed |dT/dt| in degrees C per minute.
	RatePerMinute float64

	start, target float64
	startSeconds  float64
	active        bool
}

// Start begins a ramp from "from" to "to", referencing t0 as elapsed-time zero.
func (r *Ramp) Start(from, to, t0Seconds float64) {
	r.start = from
	r.target = to
	r.startSeconds = t0Seconds
	r.active = true
}

// Active reports whether a ramp is currently in progress.
func (r *Ramp) Active() bool { return r.active }

// Setpoint returns the ramp's current commanded setpoint at elapsed time t
// (same clock as t0Seconds passed to Start), clamping at the target once
// reached and marking the ramp inactive.
func (r *Ramp) Setpoint(tSeconds float64) float64 {
	if !r.active {
		return r.target
	}
	elapsedMin := (tSeconds - r.startSeconds) / 60.0
	maxDelta := r.RatePerMinute * elapsedMin
	delta := r.target - r.start
	if math.Abs(delta) <= maxDelta {
		r.active = false
		return r.target
	}
	sign := 1.0
	if delta < 0 {
		sign = -1.0
	}
	return r.start + sign*maxDelta
}
