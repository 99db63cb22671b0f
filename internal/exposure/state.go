// Package exposure implements the camera server's exposure state machine:
// idle -> filter staging -> integration -> readout -> idle, driven by an
// event loop rather than the interval-timer/signal-handler design of the
// original implementation (see the design notes this repo carries forward
// from the system it replaces).
package exposure

import "fmt"

// State is one node of the exposure sequencer.
type State int

const (
	Idle State = iota
	Requested
	FilterMoving
	ReadyForExposure
	Exposing
	WaitingForEnd
	ReadyForReadout
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Requested:
		return "Requested"
	case FilterMoving:
		return "FilterMoving"
	case ReadyForExposure:
		return "ReadyForExposure"
	case Exposing:
		return "Exposing"
	case WaitingForEnd:
		return "WaitingForEnd"
	case ReadyForReadout:
		return "ReadyForReadout"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is a stimulus the dispatcher delivers to the machine.
type Event int

const (
	EventExpose Event = iota
	EventFilterAtTarget
	EventFilterStaged
	EventFilterFinal
	EventIntegrationStart
	EventPrewindow
	EventRemainingZero
	EventPostwindowExpired
	EventReadoutDone
)

// Action is a side effect the caller must perform after a transition.
type Action int

const (
	ActionStageFilter Action = iota
	ActionMoveFilterFinal
	ActionOpenShutter
	ActionStartIntegrationTimer
	ActionArmPostwindowTimer
	ActionCloseShutter
	ActionStartReadout
	ActionDeliverFrame
)

// ErrBadTransition is returned when an event is delivered in a state that
// does not define a transition for it.
type ErrBadTransition struct {
	State State
	Event Event
}

func (e ErrBadTransition) Error() string {
	return fmt.Sprintf("exposure: no transition for event %d in state %s", e.Event, e.State)
}

// Machine holds the current sequencer state and the record of the exposure
// in progress, if any.
type Machine struct {
	state  State
	record *Record
}

// NewMachine returns a Machine starting in Idle.
func NewMachine() *Machine {
	return &Machine{state: Idle}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Record returns the in-progress exposure record, or nil if Idle.
func (m *Machine) Record() *Record { return m.record }

// Step delivers an event, returning the actions the caller must perform, or
// an error if the event is not valid in the current state. Filter-change
// requests (rec.Filter != previous filter) drive an anti-backlash staging
// move: the wheel is first moved to one slot before the target, then to
// the target, to always approach from the same mechanical direction. Every
// exposure request passes through Requested on its way to ReadyForExposure;
// only FilterMoving is skippable, when no filter change is needed.
func (m *Machine) Step(ev Event, rec *Record) (State, []Action, error) {
	switch m.state {
	case Idle:
		if ev != EventExpose {
			return m.state, nil, ErrBadTransition{m.state, ev}
		}
		m.record = rec
		m.state = Requested
		if rec.NeedsFilterChange {
			return m.state, []Action{ActionStageFilter}, nil
		}
		return m.state, nil, nil

	case Requested:
		if ev != EventFilterStaged {
			return m.state, nil, ErrBadTransition{m.state, ev}
		}
		if m.record.NeedsFilterChange {
			m.state = FilterMoving
			return m.state, []Action{ActionMoveFilterFinal}, nil
		}
		m.state = ReadyForExposure
		return m.state, []Action{ActionOpenShutter, ActionStartIntegrationTimer}, nil

	case FilterMoving:
		if ev != EventFilterFinal {
			return m.state, nil, ErrBadTransition{m.state, ev}
		}
		m.state = ReadyForExposure
		return m.state, []Action{ActionOpenShutter, ActionStartIntegrationTimer}, nil

	case ReadyForExposure:
		if ev != EventIntegrationStart {
			return m.state, nil, ErrBadTransition{m.state, ev}
		}
		m.state = Exposing
		return m.state, nil, nil

	case Exposing:
		switch ev {
		case EventPrewindow:
			return m.state, []Action{ActionArmPostwindowTimer}, nil
		case EventRemainingZero:
			m.state = WaitingForEnd
			return m.state, []Action{ActionCloseShutter}, nil
		default:
			return m.state, nil, ErrBadTransition{m.state, ev}
		}

	case WaitingForEnd:
		if ev != EventPostwindowExpired {
			return m.state, nil, ErrBadTransition{m.state, ev}
		}
		m.state = ReadyForReadout
		return m.state, []Action{ActionStartReadout}, nil

	case ReadyForReadout:
		if ev != EventReadoutDone {
			return m.state, nil, ErrBadTransition{m.state, ev}
		}
		m.state = Idle
		done := m.record
		m.record = nil
		_ = done
		return m.state, []Action{ActionDeliverFrame}, nil

	default:
		return m.state, nil, ErrBadTransition{m.state, ev}
	}
}
