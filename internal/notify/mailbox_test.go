package notify

import (
	"os"
	"testing"
	"time"
)

func TestNotifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mb := Default(dir)

	received := make(chan string, 1)
	if err := mb.RegisterAsConsumer(func(name string) {
		received <- name
	}); err != nil {
		t.Fatalf("RegisterAsConsumer: %v", err)
	}

	// NotifyNewImage will signal os.Getpid() since the test process
	// registered itself as the consumer above.
	if err := mb.NotifyNewImage("/data/2026-07-30/img000123.fits"); err != nil {
		t.Fatalf("NotifyNewImage: %v", err)
	}

	select {
	case name := <-received:
		if name != "/data/2026-07-30/img000123.fits" {
			t.Errorf("want matching filename, got %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SIGUSR1 callback")
	}
}

func TestCurrentFilenameMissingFile(t *testing.T) {
	dir := t.TempDir()
	mb := Default(dir)
	if _, err := mb.CurrentFilename(); err == nil {
		t.Error("want error reading nonexistent filename file")
	}
	_ = os.Getpid()
}
