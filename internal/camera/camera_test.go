package camera

import "testing"

func TestMockCameraExposureLifecycle(t *testing.T) {
	cam := NewMockCamera()
	if err := cam.Configure(0, 0, 64, 32, 1, 1, 1); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := cam.StartExposure(0, true); err != nil {
		t.Fatalf("StartExposure: %v", err)
	}
	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(frame) != 64*32 {
		t.Errorf("want %d pixels, got %d", 64*32, len(frame))
	}
	gain, err := cam.EGain()
	if err != nil {
		t.Fatalf("EGain: %v", err)
	}
	if gain != 2.1 {
		t.Errorf("want gain 2.1 for state 1, got %v", gain)
	}
}

func TestMockCameraRejectsDoubleExposure(t *testing.T) {
	cam := NewMockCamera()
	if err := cam.StartExposure(5, true); err != nil {
		t.Fatalf("StartExposure: %v", err)
	}
	if err := cam.StartExposure(5, true); err == nil {
		t.Error("want error starting a second concurrent exposure")
	}
}

func TestMockCameraReadFrameWithoutExposureFails(t *testing.T) {
	cam := NewMockCamera()
	if _, err := cam.ReadFrame(); err == nil {
		t.Error("want error reading a frame with no exposure in progress")
	}
}
