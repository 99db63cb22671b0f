package cooler

import (
	"sync"
	"testing"
	"time"
)

func TestWorkerRegulatesTowardSetpoint(t *testing.T) {
	hw := NewMockHW(20.0)
	w := NewWorker(hw, hw, &sync.Mutex{}, nil)
	if err := w.SetTemperatureSetpoint(10.0); err != nil {
		t.Fatalf("SetTemperatureSetpoint: %v", err)
	}
	for i := 0; i < 50; i++ {
		if err := w.cycle(); err != nil {
			t.Fatalf("cycle: %v", err)
		}
	}
	got, err := w.GetTemperature()
	if err != nil {
		t.Fatalf("GetTemperature: %v", err)
	}
	if got > 10.5 {
		t.Errorf("want ccd temp near or below 10C after settling, got %f", got)
	}
}

func TestWorkerRampsLargeSetpointChange(t *testing.T) {
	hw := NewMockHW(20.0)
	w := NewWorker(hw, hw, &sync.Mutex{}, nil)
	if err := w.SetTemperatureSetpoint(-20.0); err != nil {
		t.Fatalf("SetTemperatureSetpoint: %v", err)
	}
	w.mu.Lock()
	mode := w.mode
	w.mu.Unlock()
	if mode != ModeRamp {
		t.Errorf("want ModeRamp for a 40C step, got %v", mode)
	}
}

func TestWorkerRunStopsOnClose(t *testing.T) {
	hw := NewMockHW(20.0)
	w := NewWorker(hw, hw, &sync.Mutex{}, nil)
	w.CyclePeriod = time.Millisecond
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop closed")
	}
}
