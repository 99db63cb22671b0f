package drift

import (
	"context"
	"log"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// UpdatePeriod is how often a guide correction is recomputed during an
// exposure, matching the original controller's fixed cadence.
const UpdatePeriod = 10 * time.Second

// pulseRateLimit caps how often the mount will actually accept a pulse-guide
// command; correction requests arrive on the UpdatePeriod cadence above, but
// the limiter also protects against a burst of corrective calls from a
// tight re-centering loop after a meridian flip.
const pulseRateLimit = 1.0 // commands per second

// Guide issues a pulse-guide command to the mount; positive dec guides
// toward north when NorthUp is true, positive ra guides east.
type Guide func(decSeconds, raSeconds float64) error

// Guider tracks both axes and schedules periodic in-exposure corrections.
type Guider struct {
	Dec, RA Axis
	NorthUp bool
	guide   Guide
	raScale float64 // cos(dec), recomputed on each AcceptCenter
	limiter *rate.Limiter
}

// NewGuider returns a Guider that calls guide to issue pulse-guide commands.
func NewGuider(guide Guide, logger *log.Logger) *Guider {
	g := &Guider{guide: guide, raScale: 1.0, limiter: rate.NewLimiter(pulseRateLimit, 1)}
	g.Dec = Axis{Name: "DEC", Log: logger}
	g.RA = Axis{Name: "RA", Log: logger}
	return g
}

// AcceptCenter records a new plate-solved or centroid pointing, in radians,
// scaling the RA axis by cos(dec) so both axes are measured in the same
// arcsec-on-sky units.
func (g *Guider) AcceptCenter(decRadians, raRadians float64, when time.Time) {
	g.raScale = math.Cos(decRadians)
	const radToArcsec = 180.0 * 3600.0 / math.Pi
	g.Dec.AcceptCenter(decRadians*radToArcsec, when)
	g.RA.AcceptCenter(raRadians*radToArcsec*g.raScale, when)
}

// ExposureStart issues the first corrective pulse for an exposure starting
// at now.
func (g *Guider) ExposureStart(now time.Time) error {
	return g.correct(now)
}

// ExposureGuide blocks for the remainder of exposureEnd, issuing periodic
// corrections every UpdatePeriod (or less, for the final partial interval).
// Callers typically run this in its own goroutine alongside the exposure's
// integration timer.
func (g *Guider) ExposureGuide(exposureEnd time.Time) error {
	for {
		now := time.Now()
		remaining := exposureEnd.Sub(now)
		if remaining <= 0 {
			return nil
		}
		sleep := UpdatePeriod
		if remaining < sleep {
			sleep = remaining
		}
		time.Sleep(sleep)
		now = time.Now()
		if now.Before(exposureEnd) {
			if err := g.correct(now); err != nil {
				return err
			}
		}
	}
}

func (g *Guider) correct(now time.Time) error {
	decSign := 1.0
	if g.NorthUp {
		decSign = -1.0
	}
	decSec, decOK := g.Dec.GuidePulse(now, UpdatePeriod)
	raSec, raOK := g.RA.GuidePulse(now, UpdatePeriod)

	var decCmd, raCmd float64
	if decOK {
		decCmd = decSign * decSec
	}
	if raOK {
		// Speed-correction option assumed off: scale by 1/raScale, matching
		// the RA axis's arcsec-per-second-of-RA-time convention.
		scale := g.raScale
		if scale == 0 {
			scale = 1.0
		}
		raCmd = -raSec / scale
	}
	if !decOK && !raOK {
		return nil
	}
	if err := g.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return g.guide(decCmd, raCmd)
}
