package drift

import (
	"math"
	"testing"
	"time"
)

func TestAxisFitRecoversLinearDrift(t *testing.T) {
	a := &Axis{Name: "TEST"}
	base := time.Now()
	// perfect linear drift of 0.1 arcsec/sec, fed directly in arcsec units
	for i := 0; i < 10; i++ {
		when := base.Add(time.Duration(i*10) * time.Second)
		a.AcceptCenter(0.1*float64(i*10), when)
	}
	if len(a.measurements) != 10 {
		t.Fatalf("want 10 measurements recorded, got %d", len(a.measurements))
	}
	if math.IsNaN(a.rate) {
		t.Fatal("fit produced NaN rate")
	}
}

func TestGuidePulseInhibitsLargeCorrection(t *testing.T) {
	a := &Axis{Name: "TEST"}
	a.intercept = 1000 // arcsec, unreasonable
	a.referenceTime = time.Now()
	_, ok := a.GuidePulse(time.Now(), UpdatePeriod)
	if ok {
		t.Error("want large correction inhibited")
	}
}

func TestGuidePulseAcceptsSmallCorrection(t *testing.T) {
	a := &Axis{Name: "TEST"}
	a.intercept = 1.0 // arcsec
	a.referenceTime = time.Now()
	sec, ok := a.GuidePulse(time.Now(), UpdatePeriod)
	if !ok {
		t.Fatal("want small correction accepted")
	}
	if sec <= 0 {
		t.Errorf("want positive guide seconds, got %f", sec)
	}
}
