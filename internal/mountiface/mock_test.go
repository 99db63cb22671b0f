package mountiface

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMockMountGotoAndPointing(t *testing.T) {
	m := NewMockMount()
	target := Pointing{RAHours: 5.5, DecDeg: 20}
	if err := m.GotoJ2000(target); err != nil {
		t.Fatalf("GotoJ2000: %v", err)
	}
	got, err := m.CurrentPointing()
	if err != nil {
		t.Fatalf("CurrentPointing: %v", err)
	}
	if diff := cmp.Diff(target, got); diff != "" {
		t.Errorf("CurrentPointing mismatch (-want +got):\n%s", diff)
	}
}

func TestMockMountMeridianFlipTogglesPierSide(t *testing.T) {
	m := NewMockMount()
	west, err := m.OnWestSideOfPier()
	if err != nil {
		t.Fatalf("OnWestSideOfPier: %v", err)
	}
	if !west {
		t.Fatal("want mock mount to start on the west side of the pier")
	}
	if err := m.MeridianFlip(); err != nil {
		t.Fatalf("MeridianFlip: %v", err)
	}
	west, _ = m.OnWestSideOfPier()
	if west {
		t.Error("want pier side to flip after MeridianFlip")
	}
}
