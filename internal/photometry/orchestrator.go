package photometry

import (
	"context"
	"fmt"
	"log"
	"math"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/internal/drift"
	"github.com/munkacsymj/astrosystem/internal/flatpanel"
	"github.com/munkacsymj/astrosystem/internal/mountiface"
)

// PlateSolve is satisfied by invoking an external solver binary and
// parsing its stdout; the solver itself is a Non-goal.
type PlateSolve func(ctx context.Context, fitsPath string) (mountiface.Pointing, error)

// ExecPlateSolve shells out to an external plate-solving binary, reading
// "RA DEC" (radians) from stdout.
func ExecPlateSolve(binary string) PlateSolve {
	return func(ctx context.Context, fitsPath string) (mountiface.Pointing, error) {
		out, err := exec.CommandContext(ctx, binary, fitsPath).Output()
		if err != nil {
			return mountiface.Pointing{}, errors.Wrap(err, "photometry: plate solve exec")
		}
		var ra, dec float64
		if _, err := fmt.Sscanf(string(out), "%f %f", &ra, &dec); err != nil {
			return mountiface.Pointing{}, errors.Wrap(err, "photometry: parse plate solve output")
		}
		return mountiface.Pointing{RAHours: ra * 12 / math.Pi, DecDeg: dec * 180 / math.Pi}, nil
	}
}

// Session holds the state of one photometry run and provides Finder
// convergence onto a target, the quit-time check, and meridian-flip
// detection and handling, grounded on time_seq.cc and finder.cc. The
// exposure loop and running-focus seeding are run by the caller.
type Session struct {
	Mount     mountiface.Mount
	Guider    *drift.Guider
	Focus     *FocusController
	FlatPanel flatpanel.Panel
	Sessions  *SessionLog
	Solve     PlateSolve
	Log       *log.Logger

	QuitAt      time.Time
	FlipGraceAt time.Time
}

// ConvergeOnTarget repeatedly slews and plate-solves until the solved
// pointing is within toleranceArcsec of target or maxAttempts is reached,
// recording each accepted solve as a sync point (Finder's convergence loop).
func (s *Session) ConvergeOnTarget(ctx context.Context, target mountiface.Pointing, exposeAndSolve func() (string, error), toleranceArcsec float64, maxAttempts int) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := s.Mount.GotoJ2000(target); err != nil {
			return errors.Wrap(err, "photometry: finder goto")
		}
		if err := s.Mount.WaitForStop(2 * time.Minute); err != nil {
			return errors.Wrap(err, "photometry: finder wait for stop")
		}
		fitsPath, err := exposeAndSolve()
		if err != nil {
			return errors.Wrap(err, "photometry: finder exposure")
		}
		solved, err := s.Solve(ctx, fitsPath)
		if err != nil {
			if s.Log != nil {
				s.Log.Printf("finder: solve failed on attempt %d: %v", attempt, err)
			}
			continue
		}
		sp := mountiface.SyncPoint{Requested: target, Actual: solved, When: time.Now()}
		if s.Sessions != nil {
			if err := s.Sessions.Append(sp); err != nil && s.Log != nil {
				s.Log.Printf("finder: session log append failed: %v", err)
			}
		}
		if err := s.Mount.Sync(solved); err != nil {
			return errors.Wrap(err, "photometry: finder sync")
		}
		offset := angularSeparationArcsec(target, solved)
		if s.Log != nil {
			s.Log.Printf("finder: attempt %d offset=%.1f arcsec", attempt, offset)
		}
		if offset <= toleranceArcsec {
			return nil
		}
	}
	return errors.New("photometry: finder did not converge within max attempts")
}

// ShouldQuit reports whether the session's quit time has passed.
func (s *Session) ShouldQuit(now time.Time) bool {
	return !s.QuitAt.IsZero() && now.After(s.QuitAt)
}

// NeedsMeridianFlip reports whether the mount is approaching the meridian
// flip grace period and should flip before the next exposure.
func (s *Session) NeedsMeridianFlip(now time.Time) (bool, error) {
	if s.FlipGraceAt.IsZero() || now.Before(s.FlipGraceAt) {
		return false, nil
	}
	west, err := s.Mount.OnWestSideOfPier()
	if err != nil {
		return false, err
	}
	return !west, nil
}

// PerformMeridianFlip flips the mount and clears the guider's per-axis drift
// history, since the flip invalidates it; callers must re-center/re-solve
// afterward.
func (s *Session) PerformMeridianFlip() error {
	if err := s.Mount.MeridianFlip(); err != nil {
		return errors.Wrap(err, "photometry: meridian flip")
	}
	if s.Guider != nil {
		s.Guider.Dec = drift.Axis{Name: s.Guider.Dec.Name, Log: s.Guider.Dec.Log}
		s.Guider.RA = drift.Axis{Name: s.Guider.RA.Name, Log: s.Guider.RA.Log}
	}
	return nil
}

func angularSeparationArcsec(a, b mountiface.Pointing) float64 {
	dra := (a.RAHours - b.RAHours) * 15 * 3600 // hours -> arcsec at dec=0 approx
	ddec := (a.DecDeg - b.DecDeg) * 3600
	return abs(dra) + abs(ddec)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
