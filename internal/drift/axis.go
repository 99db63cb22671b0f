// Package drift implements per-axis image drift tracking and guide-pulse
// generation during an exposure, fitting a weighted quadratic to recent
// centroid measurements and issuing small corrective pulses through the
// mount's PulseGuide operation.
package drift

import (
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// GuideRatePerSecond is the mount's fixed guide rate, in arcsec of sky
// motion per second of pulse-guide time.
const GuideRatePerSecond = 3.75

// maxGuideSeconds bounds any single corrective pulse; a larger computed
// correction is considered a bad measurement and suppressed rather than
// acted on.
const maxGuideSeconds = 8.0

// weightGrowth is the per-sample weight multiplier (newest heaviest),
// applied oldest to newest.
const weightGrowth = 1.05

// Measurement is one centroid reading for an axis at a point in time.
type Measurement struct {
	When          time.Time
	PositionArcs  float64 // measured position relative to the first reading, arcsec
	CumGuidedArcs float64 // position plus cumulative guidance already issued
}

// Axis accumulates Measurements for one mount axis and fits a weighted
// quadratic drift model: position(t) = intercept + rate*t + 0.5*accel*t^2,
// with t measured in seconds relative to the newest sample.
type Axis struct {
	Name string
	Log  *log.Logger

	origPosition float64
	origTime     time.Time
	cumGuided    float64
	initialized  bool

	measurements []Measurement

	intercept, rate, accel float64
	referenceTime          time.Time
}

// AcceptCenter records a new centroid measurement (already converted to
// arcsec on this axis by the caller) and refits the drift model.
func (a *Axis) AcceptCenter(measured float64, when time.Time) {
	if !a.initialized {
		a.origPosition = measured
		a.origTime = when
		a.initialized = true
	}
	m := Measurement{
		When:         when,
		PositionArcs: measured - a.origPosition,
	}
	m.CumGuidedArcs = m.PositionArcs + a.cumGuided
	a.measurements = append(a.measurements, m)
	a.refit()
	if a.Log != nil {
		a.Log.Printf("%s drift: n=%d intercept=%.3f rate=%.4f accel=%.5f",
			a.Name, len(a.measurements), a.intercept, a.rate, a.accel)
	}
}

func (a *Axis) refit() {
	n := len(a.measurements)
	if n < 2 {
		a.intercept, a.rate, a.accel = 0, 0, 0
		return
	}
	a.referenceTime = a.measurements[n-1].When

	A := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i, m := range a.measurements {
		dt := m.When.Sub(a.referenceTime).Seconds()
		A.Set(i, 0, 1.0)
		A.Set(i, 1, dt)
		A.Set(i, 2, 0.5*dt*dt)
		y.SetVec(i, m.CumGuidedArcs)
	}
	// Apply exponential weights (newest dominant: oldest sample gets the
	// smallest weight) via sqrt(weight) scaling of both rows and targets,
	// so the normal equations solve the weighted least squares problem.
	w := 1.0
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[i] = w
		w *= weightGrowth
	}
	Aw := mat.NewDense(n, 3, nil)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(weights[i])
		for j := 0; j < 3; j++ {
			Aw.Set(i, j, A.At(i, j)*sw)
		}
		yw.SetVec(i, y.AtVec(i)*sw)
	}

	var ata mat.Dense
	ata.Mul(Aw.T(), Aw)
	var aty mat.VecDense
	aty.MulVec(Aw.T(), yw)

	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return // singular (e.g. all samples at identical time); keep prior fit
	}
	var theta mat.VecDense
	theta.MulVec(&inv, &aty)
	a.intercept, a.rate, a.accel = theta.AtVec(0), theta.AtVec(1), theta.AtVec(2)
}

// Predict returns the predicted cumulative position offsetSeconds after the
// most recent measurement's timestamp.
func (a *Axis) Predict(offsetSeconds float64) float64 {
	return a.intercept + a.rate*offsetSeconds + 0.5*a.accel*offsetSeconds*offsetSeconds
}

// GuidePulse computes, in seconds of guide time, how long to pulse-guide
// this axis so that by updatePeriod/2 from now the mount sits on the
// predicted track, per the original controller's half-interval lead. It
// returns ok=false if the computed correction exceeds maxGuideSeconds,
// which is treated as a bad fit rather than acted upon.
func (a *Axis) GuidePulse(now time.Time, updatePeriod time.Duration) (seconds float64, ok bool) {
	target := now.Add(updatePeriod / 2)
	offset := target.Sub(a.referenceTime).Seconds()
	targetPos := a.Predict(offset)
	guideArcs := targetPos - a.cumGuided
	guideSec := guideArcs / GuideRatePerSecond
	if guideSec >= maxGuideSeconds || guideSec <= -maxGuideSeconds {
		if a.Log != nil {
			a.Log.Printf("%s: unreasonable guide inhibited (%.2fs)", a.Name, guideSec)
		}
		return 0, false
	}
	a.cumGuided += guideArcs
	return guideSec, true
}
