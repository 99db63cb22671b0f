package exposure

import "testing"

func TestMachineHappyPathNoFilterChange(t *testing.T) {
	m := NewMachine()
	rec := &Record{DurationSeconds: 10}

	st, actions, err := m.Step(EventExpose, rec)
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if st != Requested {
		t.Fatalf("want Requested, got %s", st)
	}
	if len(actions) != 0 {
		t.Fatalf("want no actions staging a no-op filter change, got %v", actions)
	}

	st, actions, err = m.Step(EventFilterStaged, nil)
	if err != nil {
		t.Fatalf("FilterStaged: %v", err)
	}
	if st != ReadyForExposure {
		t.Fatalf("want ReadyForExposure, got %s", st)
	}
	if len(actions) != 2 {
		t.Fatalf("want 2 actions, got %v", actions)
	}

	st, _, err = m.Step(EventIntegrationStart, nil)
	if err != nil || st != Exposing {
		t.Fatalf("IntegrationStart: st=%s err=%v", st, err)
	}

	st, _, err = m.Step(EventRemainingZero, nil)
	if err != nil || st != WaitingForEnd {
		t.Fatalf("RemainingZero: st=%s err=%v", st, err)
	}

	st, _, err = m.Step(EventPostwindowExpired, nil)
	if err != nil || st != ReadyForReadout {
		t.Fatalf("PostwindowExpired: st=%s err=%v", st, err)
	}

	st, _, err = m.Step(EventReadoutDone, nil)
	if err != nil || st != Idle {
		t.Fatalf("ReadoutDone: st=%s err=%v", st, err)
	}
	if m.Record() != nil {
		t.Error("want record cleared after readout")
	}
}

func TestMachineFilterChangeStages(t *testing.T) {
	m := NewMachine()
	rec := &Record{DurationSeconds: 5, NeedsFilterChange: true}

	st, _, err := m.Step(EventExpose, rec)
	if err != nil || st != Requested {
		t.Fatalf("Expose: st=%s err=%v", st, err)
	}
	st, _, err = m.Step(EventFilterStaged, nil)
	if err != nil || st != FilterMoving {
		t.Fatalf("FilterStaged: st=%s err=%v", st, err)
	}
	st, _, err = m.Step(EventFilterFinal, nil)
	if err != nil || st != ReadyForExposure {
		t.Fatalf("FilterFinal: st=%s err=%v", st, err)
	}
}

func TestMachineRejectsBadTransition(t *testing.T) {
	m := NewMachine()
	if _, _, err := m.Step(EventReadoutDone, nil); err == nil {
		t.Error("want error delivering ReadoutDone while Idle")
	}
}
