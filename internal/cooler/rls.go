package cooler

import "gonum.org/v1/gonum/mat"

// RLSEstimator incrementally fits ambient-ccd = ambient_offset +
// power_ratio*power using recursive least squares, replacing the original
// controller's from-scratch batch fit (recomputed every cycle over a
// growing sample array) with an O(1)-per-sample update. Its output feeds
// the worker's feed-forward target_power term the following cycle.
type RLSEstimator struct {
	theta  *mat.VecDense // [ambient_offset, power_ratio]
	p      *mat.Dense    // 2x2 covariance
	forget float64
	seeded bool
}

// NewRLSEstimator returns an estimator with forgetting factor lambda in
// (0, 1]; 1.0 weights all samples equally, lower values favor recent data.
func NewRLSEstimator(lambda float64) *RLSEstimator {
	return &RLSEstimator{forget: lambda}
}

// Update folds in one (power, ambientMinusCCD) sample and returns the
// current (ambientOffset, powerRatio) estimate.
func (e *RLSEstimator) Update(power, ambientMinusCCD float64) (ambientOffset, powerRatio float64) {
	x := mat.NewVecDense(2, []float64{1.0, power})
	if !e.seeded {
		e.theta = mat.NewVecDense(2, []float64{ambientMinusCCD, 0})
		e.p = mat.NewDense(2, 2, []float64{1e3, 0, 0, 1e3})
		e.seeded = true
	}

	var px mat.VecDense
	px.MulVec(e.p, x)

	denom := e.forget + mat.Dot(x, &px)
	gain := mat.NewVecDense(2, nil)
	gain.ScaleVec(1.0/denom, &px)

	predicted := mat.Dot(x, e.theta)
	innovation := ambientMinusCCD - predicted

	var dtheta mat.VecDense
	dtheta.ScaleVec(innovation, gain)
	e.theta.AddVec(e.theta, &dtheta)

	var gpx mat.Dense
	gpx.Mul(gain, px.T())
	var newP mat.Dense
	newP.Sub(e.p, &gpx)
	newP.Scale(1.0/e.forget, &newP)
	e.p = &newP

	return e.theta.AtVec(0), e.theta.AtVec(1)
}
