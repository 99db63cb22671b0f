package filterwheel

import "testing"

func TestTableSlotFor(t *testing.T) {
	table := Table{
		{Slot: 0, Name: "U"},
		{Slot: 1, Name: "B"},
		{Slot: 2, Name: "V"},
	}
	slot, ok := table.SlotFor("V")
	if !ok || slot != 2 {
		t.Errorf("want slot 2, true; got %d, %v", slot, ok)
	}
	if _, ok := table.SlotFor("missing"); ok {
		t.Error("want false for unknown filter name")
	}
}
