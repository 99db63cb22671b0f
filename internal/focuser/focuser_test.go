package focuser

import "testing"

func TestMockFocuserMoveTo(t *testing.T) {
	f := NewMockFocuser(5000)
	pos, err := f.Position()
	if err != nil || pos != 5000 {
		t.Fatalf("want start position 5000, got %d, %v", pos, err)
	}
	if err := f.MoveTo(5200); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	pos, _ = f.Position()
	if pos != 5200 {
		t.Errorf("want 5200, got %d", pos)
	}
}
