package camera

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MockCamera is a deterministic in-memory backend for tests and
// development, following the teacher's map-guarded-by-mutex mock pattern.
type MockCamera struct {
	mu   sync.Mutex
	desc Descriptor

	aoiW, aoiH   int
	binH, binV   int
	gainState    int
	exposureEnds time.Time
	exposing     bool
	egainTable   []float64
}

// NewMockCamera returns a ready-to-use mock with a 1024x1024 sensor.
func NewMockCamera() *MockCamera {
	return &MockCamera{
		desc:       Descriptor{Model: "MOCKCAM", Serial: "0000", WidthPx: 1024, HeightPx: 1024, DriverVersion: "mock-1"},
		aoiW:       1024,
		aoiH:       1024,
		binH:       1,
		binV:       1,
		egainTable: []float64{1.0, 2.1, 4.3},
	}
}

// Descriptor returns static camera identity.
func (m *MockCamera) Descriptor() (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc, nil
}

// Configure records AOI/bin/gain settings.
func (m *MockCamera) Configure(aoiLeft, aoiTop, aoiWidth, aoiHeight, binH, binV, gainState int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if aoiWidth <= 0 || aoiHeight <= 0 {
		return errors.New("camera: invalid aoi dimensions")
	}
	m.aoiW, m.aoiH, m.binH, m.binV, m.gainState = aoiWidth, aoiHeight, binH, binV, gainState
	return nil
}

// StartExposure begins a simulated integration.
func (m *MockCamera) StartExposure(durationSeconds float64, useShutter bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exposing {
		return errors.New("camera: exposure already in progress")
	}
	m.exposing = true
	m.exposureEnds = time.Now().Add(time.Duration(durationSeconds * float64(time.Second)))
	return nil
}

// RemainingTime returns simulated time left.
func (m *MockCamera) RemainingTime() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exposing {
		return 0, nil
	}
	d := time.Until(m.exposureEnds)
	if d < 0 {
		d = 0
	}
	return d, nil
}

// AbortExposure stops the simulated integration.
func (m *MockCamera) AbortExposure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposing = false
	return nil
}

// ReadFrame returns a synthetic frame of the configured AOI size with a
// little photon-shot-like noise, sized per the raw (unbinned) AOI.
func (m *MockCamera) ReadFrame() ([]uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exposing {
		return nil, errors.New("camera: no exposure in progress")
	}
	m.exposing = false
	n := m.aoiW * m.aoiH
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(500 + rand.Intn(50))
	}
	return out, nil
}

// EGain returns the electrons/ADU for the current gain state.
func (m *MockCamera) EGain() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gainState < 0 || m.gainState >= len(m.egainTable) {
		return 1.0, nil
	}
	return m.egainTable[m.gainState], nil
}
