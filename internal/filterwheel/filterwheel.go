// Package filterwheel implements the filter wheel façade over a single
// ASCII digit serial protocol, plus the anti-backlash staging move the
// exposure state machine relies on.
package filterwheel

import (
	"fmt"
	"strconv"
	"time"

	"github.com/munkacsymj/astrosystem/comm"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Definition names one filter slot.
type Definition struct {
	Slot int
	Name string
}

// Table maps filter name to slot, loaded from the flat YAML table
// described in SPEC_FULL.md's ambient stack section.
type Table []Definition

// SlotFor returns the slot number for a named filter.
func (t Table) SlotFor(name string) (int, bool) {
	for _, d := range t {
		if d.Name == name {
			return d.Slot, true
		}
	}
	return 0, false
}

// ErrMoveTimeout is returned when the wheel does not settle within the
// hardware's 25-second settle time; the camera server fails the exposure
// and returns the error to the requesting client.
var ErrMoveTimeout = errors.New("filterwheel: move timed out")

const settleTimeout = 25 * time.Second

// Wheel is a serial, single-ASCII-digit filter wheel controller.
type Wheel struct {
	dev comm.RemoteDevice

	current int
}

// New returns a Wheel communicating over a serial port.
func New(port string, baud int) *Wheel {
	cfg := &serial.Config{Name: port, Baud: baud}
	return &Wheel{dev: comm.NewRemoteDevice(port, true, nil, cfg)}
}

// Init queries the wheel's current position.
func (w *Wheel) Init() error {
	resp, err := w.dev.OpenSendRecvClose([]byte("P?"))
	if err != nil {
		return errors.Wrap(err, "filterwheel: init query")
	}
	slot, err := strconv.Atoi(string(resp))
	if err != nil {
		return errors.Wrap(err, "filterwheel: parse init position")
	}
	w.current = slot
	return nil
}

// CurrentSlot returns the last known slot.
func (w *Wheel) CurrentSlot() int { return w.current }

// move commands the wheel to a single slot digit and polls until it
// reports settled or settleTimeout elapses.
func (w *Wheel) move(slot int) error {
	cmd := []byte(fmt.Sprintf("%d", slot))
	if _, err := w.dev.OpenSendRecvClose(cmd); err != nil {
		return errors.Wrap(err, "filterwheel: move command")
	}
	deadline := time.Now().Add(settleTimeout)
	for {
		resp, err := w.dev.OpenSendRecvClose([]byte("P?"))
		if err == nil {
			if s, perr := strconv.Atoi(string(resp)); perr == nil && s == slot {
				w.current = slot
				return nil
			}
		}
		if time.Now().After(deadline) {
			return ErrMoveTimeout
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// MoveTo moves to target, staging through one slot before it first so the
// mechanism always approaches from the same direction (anti-backlash).
func (w *Wheel) MoveTo(target, stagingOffset int) error {
	if target == w.current {
		return nil
	}
	staged := target - stagingOffset
	if staged != w.current {
		if err := w.move(staged); err != nil {
			return err
		}
	}
	return w.move(target)
}
