package photometry

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pkg/errors"
)

// FocusSample is one running-focus measurement: a focuser position and the
// focus metric (e.g. HFD or FWHM) measured there.
type FocusSample struct {
	Position int
	Metric   float64
}

// FocusController fits a parabola to recent focus samples and reports the
// position at its minimum.
type FocusController struct {
	samples []FocusSample
}

// AddSample records a new (position, metric) pair.
func (f *FocusController) AddSample(s FocusSample) {
	f.samples = append(f.samples, s)
	const maxHistory = 12
	if len(f.samples) > maxHistory {
		f.samples = f.samples[len(f.samples)-maxHistory:]
	}
}

// BestPosition fits metric = a + b*x + c*x^2 over recent samples and
// returns the position at the fit's minimum (-b/2c). At least 3 samples
// with distinct positions are required.
func (f *FocusController) BestPosition() (int, error) {
	n := len(f.samples)
	if n < 3 {
		return 0, errors.New("photometry: need at least 3 focus samples")
	}
	A := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i, s := range f.samples {
		x := float64(s.Position)
		A.Set(i, 0, 1)
		A.Set(i, 1, x)
		A.Set(i, 2, x*x)
		y.SetVec(i, s.Metric)
	}
	var ata mat.Dense
	ata.Mul(A.T(), A)
	var aty mat.VecDense
	aty.MulVec(A.T(), y)
	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return 0, errors.Wrap(err, "photometry: singular focus fit")
	}
	var theta mat.VecDense
	theta.MulVec(&inv, &aty)
	b, c := theta.AtVec(1), theta.AtVec(2)
	if c <= 0 {
		return 0, errors.New("photometry: focus fit is not concave up")
	}
	return int(-b / (2 * c)), nil
}
