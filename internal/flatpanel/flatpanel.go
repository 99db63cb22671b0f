// Package flatpanel implements the flat-light calibration panel façade:
// an ASCII serial protocol for on/off and brightness, adapted from the
// teacher's newport/fluke ASCII command idiom.
package flatpanel

import (
	"fmt"

	"github.com/munkacsymj/astrosystem/comm"
	"github.com/pkg/errors"
)

// Panel is the façade the photometry orchestrator depends on for flat-field
// calibration sequences.
type Panel interface {
	SetOn(on bool) error
	SetBrightness(pct int) error
}

// ASCIIPanel drives a flat panel over a serial connection.
type ASCIIPanel struct {
	dev comm.RemoteDevice
}

// New returns a panel connecting over serial.
func New(port string) *ASCIIPanel {
	return &ASCIIPanel{dev: comm.NewRemoteDevice(port, true, nil, nil)}
}

// SetOn turns the panel's light source on or off.
func (p *ASCIIPanel) SetOn(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	_, err := p.dev.OpenSendRecvClose([]byte("L" + v))
	return errors.Wrap(err, "flatpanel: set on/off")
}

// SetBrightness sets the panel brightness as a percentage, 0-100.
func (p *ASCIIPanel) SetBrightness(pct int) error {
	if pct < 0 || pct > 100 {
		return errors.New("flatpanel: brightness must be 0-100")
	}
	_, err := p.dev.OpenSendRecvClose([]byte(fmt.Sprintf("B%d", pct)))
	return errors.Wrap(err, "flatpanel: set brightness")
}

// MockPanel is an in-memory panel for tests.
type MockPanel struct {
	On         bool
	Brightness int
}

// SetOn records the on/off state.
func (m *MockPanel) SetOn(on bool) error {
	m.On = on
	return nil
}

// SetBrightness records the brightness percentage.
func (m *MockPanel) SetBrightness(pct int) error {
	if pct < 0 || pct > 100 {
		return errors.New("flatpanel: brightness must be 0-100")
	}
	m.Brightness = pct
	return nil
}
