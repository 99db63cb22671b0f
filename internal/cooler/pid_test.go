package cooler

import (
	"math"
	"testing"
)

func TestPIDDrivesErrorDown(t *testing.T) {
	p := NewPID(0.5, 0.1, 0.0, 0, 1)
	measured := 20.0
	for i := 0; i < 200; i++ {
		out := p.Step(-10.0, measured, 1.0, 0)
		measured -= out * 0.2 // toy plant: cooling proportional to pwm
	}
	if math.Abs(measured-(-10.0)) > 1.0 {
		t.Errorf("want convergence near -10C, got %f", measured)
	}
}

func TestPIDResetClearsIntegrator(t *testing.T) {
	// Wide limits so the output never saturates and resets the integrator
	// on its own; this isolates Reset's behavior from anti-windup.
	p := NewPID(0.1, 0.5, 0, -1e6, 1e6)
	for i := 0; i < 10; i++ {
		p.Step(-10, 20, 1.0, 0)
	}
	if p.integral == 0 {
		t.Fatal("expected integral to accumulate")
	}
	p.Reset()
	if p.integral != 0 {
		t.Error("want integral cleared after Reset")
	}
}

func TestPIDSaturationResetsIntegrator(t *testing.T) {
	p := NewPID(15, 1, 400, 0, 255)
	for i := 0; i < 20; i++ {
		out := p.Step(-10, 20, 1.0, 0) // large, persistent error: always saturates
		if out == 0 || out == 255 {
			if p.integral != 0 {
				t.Fatalf("iteration %d: want integral zero while clamped, got %f", i, p.integral)
			}
		}
	}
}

func TestRampRateLimited(t *testing.T) {
	r := Ramp{RatePerMinute: 2.0}
	r.Start(20, -10, 0)
	sp := r.Setpoint(30) // 0.5 min elapsed, max delta 1.0C
	if sp != 19.0 {
		t.Errorf("want 19.0, got %f", sp)
	}
	if !r.Active() {
		t.Error("want ramp still active")
	}
}

func TestRampCompletes(t *testing.T) {
	r := Ramp{RatePerMinute: 2.0}
	r.Start(20, 18, 0)
	sp := r.Setpoint(120) // 2 min elapsed, 4C allowed, only need 2C
	if sp != 18 {
		t.Errorf("want target reached at 18, got %f", sp)
	}
	if r.Active() {
		t.Error("want ramp inactive once target reached")
	}
}

func TestRLSEstimatorConverges(t *testing.T) {
	e := NewRLSEstimator(0.98)
	var offset, ratio float64
	for i := 0; i < 500; i++ {
		power := float64(i%10) / 10.0
		truth := 5.0 + 3.0*power
		offset, ratio = e.Update(power, truth)
	}
	if math.Abs(offset-5.0) > 0.5 {
		t.Errorf("want offset near 5.0, got %f", offset)
	}
	if math.Abs(ratio-3.0) > 0.5 {
		t.Errorf("want ratio near 3.0, got %f", ratio)
	}
}
