package photometry

import "testing"

func TestFocusControllerFindsMinimum(t *testing.T) {
	f := &FocusController{}
	// metric = (pos-5000)^2 / 1e6 + 2, minimum at pos=5000
	for _, pos := range []int{4800, 4900, 5000, 5100, 5200} {
		d := float64(pos - 5000)
		f.AddSample(FocusSample{Position: pos, Metric: d*d/1e6 + 2})
	}
	best, err := f.BestPosition()
	if err != nil {
		t.Fatalf("BestPosition: %v", err)
	}
	if best < 4950 || best > 5050 {
		t.Errorf("want best near 5000, got %d", best)
	}
}

func TestFocusControllerNeedsThreeSamples(t *testing.T) {
	f := &FocusController{}
	f.AddSample(FocusSample{Position: 100, Metric: 2})
	if _, err := f.BestPosition(); err == nil {
		t.Error("want error with fewer than 3 samples")
	}
}
