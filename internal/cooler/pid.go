// Package cooler implements the thermal regulation loop for the camera's
// CCD cooler: a PID regulator driving PWM power, a ramped setpoint
// generator for controlled warm-ups, and a recursive least-squares
// estimator of the cooler's ambient-coupling model, whose estimates set the
// next cycle's feedforward power.
package cooler

import "github.com/munkacsymj/astrosystem/util"

// PID implements the discrete-time regulator driving CCD temperature to a
// setpoint. The integrator resets whenever output saturates or the
// controller's mode changes, preventing windup across mode transitions.
type PID struct {
	Kp, Ki, Kd float64

	integral  float64
	lastErr   float64
	lastValid bool
	limiter   util.Limiter
}

// NewPID returns a PID clamping its output to [outMin, outMax].
func NewPID(kp, ki, kd, outMin, outMax float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, limiter: util.Limiter{Min: outMin, Max: outMax}}
}

// Reset clears integrator and derivative history; call on mode change.
func (p *PID) Reset() {
	p.integral = 0
	p.lastErr = 0
	p.lastValid = false
}

// Step runs one control cycle given the setpoint, measured temperature, the
// elapsed time since the previous Step, and the feed-forward power estimate
// (the PWM the cooler would need with zero error, from the ambient-coupling
// model), returning the commanded PWM in [outMin, outMax].
func (p *PID) Step(setpoint, measured, dtSeconds, feedforward float64) float64 {
	err := setpoint - measured
	p.integral += err * dtSeconds

	var deriv float64
	if p.lastValid && dtSeconds > 0 {
		deriv = (err - p.lastErr) / dtSeconds
	}
	p.lastErr = err
	p.lastValid = true

	raw := feedforward - (p.Kp*err + p.Ki*p.integral + p.Kd*deriv)
	out := p.limiter.Clamp(raw)
	if out != raw {
		// output saturated: drop the integrator to zero rather than unwind it,
		// so it starts clean once the error comes back within range.
		p.integral = 0
	}
	return out
}
