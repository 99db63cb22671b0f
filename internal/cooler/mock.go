package cooler

import "sync"

// MockHW simulates a cooled CCD's thermal response to PWM for tests and the
// --mock daemon mode: each cycle the CCD temperature relaxes toward
// ambient minus a fixed offset proportional to the commanded PWM fraction.
type MockHW struct {
	mu      sync.Mutex
	ccd     float64
	ambient float64
	pwm     float64
}

// NewMockHW starts both temperatures at the given ambient reading.
func NewMockHW(ambient float64) *MockHW {
	return &MockHW{ccd: ambient, ambient: ambient}
}

// CCDTemperature implements Sensor.
func (m *MockHW) CCDTemperature() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	const maxDrop = 40.0 // degrees C of cooling headroom at full PWM
	target := m.ambient - maxDrop*m.pwm
	m.ccd += (target - m.ccd) * 0.1
	return m.ccd, nil
}

// AmbientTemperature implements Sensor.
func (m *MockHW) AmbientTemperature() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ambient, nil
}

// SetPWM implements Actuator. pwm is in [0, 255]; the plant model works in
// a 0..1 fraction internally.
func (m *MockHW) SetPWM(pwm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pwm = pwm / 255.0
	return nil
}
