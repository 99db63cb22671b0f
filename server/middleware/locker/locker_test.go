package locker

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckBlocksWhenLocked(t *testing.T) {
	l := New()
	l.Lock()
	h := l.Check(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/mount/goto", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusLocked {
		t.Errorf("want 423 Locked, got %d", rec.Code)
	}
}

func TestCheckExemptsDoNotProtectPaths(t *testing.T) {
	l := New()
	l.DoNotProtect = append(l.DoNotProtect, "pointing")
	l.Lock()
	h := l.Check(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/mount/pointing", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("want exempted path to pass through, got %d", rec.Code)
	}
}

func TestGuardUnlocksAfterCompletion(t *testing.T) {
	l := New()
	if err := l.Guard(func() error { return nil }); err != nil {
		t.Fatalf("Guard: %v", err)
	}
	if l.Locked() {
		t.Error("want Guard to unlock after the wrapped call returns")
	}
}
