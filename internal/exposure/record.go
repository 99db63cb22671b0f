package exposure

import (
	"time"

	"github.com/munkacsymj/astrosystem/internal/fitsenc"
)

// AOI is an area-of-interest subframe, in unbinned pixel coordinates.
type AOI struct {
	Left, Top, Width, Height int
}

// Right and Bottom give the exclusive bounds of the AOI.
func (a AOI) Right() int  { return a.Left + a.Width }
func (a AOI) Bottom() int { return a.Top + a.Height }

// Binning is the software summation factor applied to raw pixels.
type Binning struct {
	H, V int
}

// Record describes one requested exposure and accumulates its outcome.
type Record struct {
	Filter             string
	NeedsFilterChange  bool
	DurationSeconds    float64
	AOI                AOI
	Bin                Binning
	Format             fitsenc.PixelFormat
	GainState          int
	Mode               int // readout mode; selects the EGain curve
	Offset             int // analog offset applied by the camera's ADC
	OutputPath         string // "-" selects the in-memory delivery path
	RequestedAt        time.Time
	IntegrationStarted time.Time
	ShutterClosedAt    time.Time

	// StatusKeywords carries extra keyword/value status fields the camera
	// server should echo back in its reply once the exposure completes.
	StatusKeywords map[string]string
}

// RemainingTime returns how much integration time is left, given now.
func (r *Record) RemainingTime(now time.Time) time.Duration {
	end := r.IntegrationStarted.Add(time.Duration(r.DurationSeconds * float64(time.Second)))
	if now.After(end) {
		return 0
	}
	return end.Sub(now)
}
