// Package mountiface implements the telescope mount façade: an ASCII
// request/response protocol over TCP, grounded on the teacher's
// newport-style ASCII command/response idiom but speaking the mount's own
// command set (goto, sync, pulse-guide, park, meridian flip).
package mountiface

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/munkacsymj/astrosystem/comm"
	"github.com/pkg/errors"
)

// Pointing is a J2000 RA/Dec pair, RA in hours, Dec in degrees.
type Pointing struct {
	RAHours, DecDeg float64
}

// SyncPoint records where the mount was told to sync, for persistence by
// the photometry orchestrator's session log.
type SyncPoint struct {
	Requested Pointing
	Actual    Pointing
	When      time.Time
}

// Mount is the façade the exposure/guide/photometry packages depend on.
type Mount interface {
	GotoJ2000(p Pointing) error
	WaitForStop(timeout time.Duration) error
	Sync(p Pointing) error
	PulseGuide(decSeconds, raSeconds float64) error
	Park() error
	Unpark() error
	CurrentPointing() (Pointing, error)
	LocalSiderealTimeHours() (float64, error)
	ControlTracking(on bool) error
	MeridianFlip() error
	OnWestSideOfPier() (bool, error)
}

// ASCIIMount implements Mount over a line-oriented TCP connection.
type ASCIIMount struct {
	dev comm.RemoteDevice
}

// New returns an ASCIIMount connecting to addr.
func New(addr string) *ASCIIMount {
	return &ASCIIMount{dev: comm.NewRemoteDevice(addr, false, nil, nil)}
}

func (m *ASCIIMount) cmd(format string, args ...interface{}) (string, error) {
	resp, err := m.dev.OpenSendRecvClose([]byte(fmt.Sprintf(format, args...)))
	if err != nil {
		return "", errors.Wrap(err, "mountiface: command")
	}
	return strings.TrimSpace(string(resp)), nil
}

// GotoJ2000 commands a slew to the given coordinates and returns once the
// command is acknowledged; callers should follow with WaitForStop.
func (m *ASCIIMount) GotoJ2000(p Pointing) error {
	resp, err := m.cmd("GOTO %f %f", p.RAHours, p.DecDeg)
	if err != nil {
		return err
	}
	if resp != "OK" {
		return errors.Errorf("mountiface: goto rejected: %s", resp)
	}
	return nil
}

// WaitForStop polls until the mount reports it is no longer slewing.
func (m *ASCIIMount) WaitForStop(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := m.cmd("MOVING?")
		if err == nil && resp == "0" {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("mountiface: wait for stop timed out")
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// Sync tells the mount its current position is p.
func (m *ASCIIMount) Sync(p Pointing) error {
	_, err := m.cmd("SYNC %f %f", p.RAHours, p.DecDeg)
	return err
}

// PulseGuide issues a guide pulse of the given duration on each axis; a
// negative value guides the opposite direction.
func (m *ASCIIMount) PulseGuide(decSeconds, raSeconds float64) error {
	_, err := m.cmd("GUIDE %f %f", decSeconds, raSeconds)
	return err
}

// Park commands the mount to its home/parked position.
func (m *ASCIIMount) Park() error {
	_, err := m.cmd("PARK")
	return err
}

// Unpark releases the mount from its parked position.
func (m *ASCIIMount) Unpark() error {
	_, err := m.cmd("UNPARK")
	return err
}

// CurrentPointing queries the mount's current RA/Dec.
func (m *ASCIIMount) CurrentPointing() (Pointing, error) {
	resp, err := m.cmd("WHERE?")
	if err != nil {
		return Pointing{}, err
	}
	parts := strings.Fields(resp)
	if len(parts) != 2 {
		return Pointing{}, errors.Errorf("mountiface: malformed WHERE? reply: %q", resp)
	}
	ra, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Pointing{}, errors.Wrap(err, "mountiface: parse ra")
	}
	dec, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Pointing{}, errors.Wrap(err, "mountiface: parse dec")
	}
	return Pointing{RAHours: ra, DecDeg: dec}, nil
}

// LocalSiderealTimeHours queries the mount's local sidereal time.
func (m *ASCIIMount) LocalSiderealTimeHours() (float64, error) {
	resp, err := m.cmd("LST?")
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

// ControlTracking enables or disables sidereal tracking.
func (m *ASCIIMount) ControlTracking(on bool) error {
	v := 0
	if on {
		v = 1
	}
	_, err := m.cmd("TRACK %d", v)
	return err
}

// MeridianFlip commands a meridian flip and waits for it to complete.
func (m *ASCIIMount) MeridianFlip() error {
	if _, err := m.cmd("FLIP"); err != nil {
		return err
	}
	return m.WaitForStop(2 * time.Minute)
}

// OnWestSideOfPier reports which side of the pier the optical tube is on.
func (m *ASCIIMount) OnWestSideOfPier() (bool, error) {
	resp, err := m.cmd("PIERSIDE?")
	if err != nil {
		return false, err
	}
	return resp == "WEST", nil
}
