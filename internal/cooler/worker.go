package cooler

import (
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/mathx"
	"github.com/munkacsymj/astrosystem/temperature"
)

// Mode selects what the regulator is doing this cycle.
type Mode int

const (
	// ModeOff disables the PWM output entirely.
	ModeOff Mode = iota
	// ModeRegulate holds the CCD at Setpoint via PID.
	ModeRegulate
	// ModeRamp moves the setpoint toward a target at a bounded rate before
	// handing off to ModeRegulate.
	ModeRamp
	// ModeManual drives the actuator at an operator-commanded PWM, bypassing
	// the PID and ramp entirely.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "Off"
	case ModeRegulate:
		return "Regulating"
	case ModeRamp:
		return "Regulating"
	case ModeManual:
		return "Manual"
	default:
		return "Error"
	}
}

// Sensor reads the two temperatures the loop needs each cycle.
type Sensor interface {
	CCDTemperature() (float64, error)
	AmbientTemperature() (float64, error)
}

// Actuator commands cooler power, in PWM counts over [0, 255]. The hardware
// mutex shared with the camera server is Worker.HWLock, not part of this
// interface.
type Actuator interface {
	SetPWM(pwm float64) error
}

// Defaults for the ambient-coupling model (target_power = (ambient -
// ambientOffset - setpoint) / powerRatio) before the RLS estimator has
// converged on better values from observed behavior.
const (
	defaultAmbientOffset = 4.0
	defaultPowerRatio    = 44.7 / 255.0
)

// Status is a snapshot of the regulator's state, suitable for logging or
// HTTP introspection.
type Status struct {
	Mode       Mode
	CCDTemp    float64
	Ambient    float64
	Setpoint   float64
	PWM        float64
	AmbientOff float64
	PowerRatio float64
}

// Worker runs the cooler's PID/ramp/RLS control loop on a fixed cycle,
// sharing a hardware mutex with the camera server so the two never issue
// commands on the bus at the same moment.
type Worker struct {
	CyclePeriod time.Duration
	HWLock      *sync.Mutex

	sensor   Sensor
	actuator Actuator
	pid      *PID
	ramp     Ramp
	rls      *RLSEstimator
	logger   *log.Logger

	mu        sync.Mutex
	mode      Mode
	setpoint  float64
	manualPWM float64
	last      Status

	ambientOffset float64
	powerRatio    float64

	startClock time.Time
}

// NewWorker builds a cooler worker. logger may be nil, in which case cycle
// logging is skipped.
func NewWorker(sensor Sensor, actuator Actuator, hwLock *sync.Mutex, logger *log.Logger) *Worker {
	return &Worker{
		CyclePeriod:   2 * time.Second,
		HWLock:        hwLock,
		sensor:        sensor,
		actuator:      actuator,
		pid:           NewPID(15, 1, 400, 0, 255),
		rls:           NewRLSEstimator(0.98),
		logger:        logger,
		mode:          ModeOff,
		ambientOffset: defaultAmbientOffset,
		powerRatio:    defaultPowerRatio,
		startClock:    time.Now(),
	}
}

// GetTemperatureSetpoint implements thermal.Controller.
func (w *Worker) GetTemperatureSetpoint() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setpoint, nil
}

// SetTemperatureSetpoint implements thermal.Controller. A change of more
// than 5C from the last commanded setpoint begins a ramp rather than
// stepping directly, matching the controlled-warm-up requirement.
func (w *Worker) SetTemperatureSetpoint(c float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	from := w.last.CCDTemp
	if w.mode == ModeOff {
		from = c
	}
	if diff := c - from; diff > 5 || diff < -5 {
		w.ramp.RatePerMinute = 2.0
		w.ramp.Start(from, c, w.elapsedSeconds())
		w.mode = ModeRamp
	} else {
		w.mode = ModeRegulate
	}
	w.setpoint = c
	w.pid.Reset()
	return nil
}

// SetOff disables the PWM output entirely, canceling any active ramp.
func (w *Worker) SetOff() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mode = ModeOff
	w.pid.Reset()
	return nil
}

// SetManualPWM drives the actuator directly at pwm (in [0, 255]), bypassing
// the PID and ramp. The cycle loop keeps writing it every period until the
// mode changes again.
func (w *Worker) SetManualPWM(pwm float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mode = ModeManual
	w.manualPWM = pwm
	w.pid.Reset()
	return nil
}

// GetTemperature implements thermal.Controller.
func (w *Worker) GetTemperature() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.CCDTemp, nil
}

func (w *Worker) elapsedSeconds() float64 {
	return time.Since(w.startClock).Seconds()
}

// Run drives the control loop until ctx-like stop channel closes. It is
// meant to run in its own goroutine for the lifetime of the camera server
// process.
func (w *Worker) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(w.CyclePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := w.cycle(); err != nil && w.logger != nil {
				w.logger.Printf("cooler cycle error: %v", err)
			}
		}
	}
}

func (w *Worker) cycle() error {
	w.HWLock.Lock()
	ccd, err := w.sensor.CCDTemperature()
	if err != nil {
		w.HWLock.Unlock()
		return errors.Wrap(err, "cooler: read ccd temperature")
	}
	ambient, err := w.sensor.AmbientTemperature()
	w.HWLock.Unlock()
	if err != nil {
		return errors.Wrap(err, "cooler: read ambient temperature")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mode == ModeOff {
		w.last = Status{Mode: ModeOff, CCDTemp: ccd, Ambient: ambient}
		return w.actuator.SetPWM(0)
	}

	if w.mode == ModeManual {
		pwm := w.manualPWM
		w.last = Status{Mode: ModeManual, CCDTemp: ccd, Ambient: ambient, PWM: pwm}
		return w.actuator.SetPWM(pwm)
	}

	target := w.setpoint
	if w.mode == ModeRamp {
		target = w.ramp.Setpoint(w.elapsedSeconds())
		if !w.ramp.Active() {
			w.mode = ModeRegulate
		}
	}

	// target_power: the PWM the ambient-coupling model predicts would hold
	// the CCD at target with zero error, feeding forward into the PID so the
	// integrator only has to correct for model mismatch.
	pr := w.powerRatio
	if pr == 0 {
		pr = defaultPowerRatio
	}
	targetPower := (ambient - w.ambientOffset - target) / pr

	pwm := w.pid.Step(target, ccd, w.CyclePeriod.Seconds(), targetPower)
	pwm = mathx.Round(pwm, 1.0)
	if err := w.actuator.SetPWM(pwm); err != nil {
		return errors.Wrap(err, "cooler: set pwm")
	}

	ambOff, powerRatio := w.rls.Update(pwm, ambient-ccd)
	w.ambientOffset, w.powerRatio = ambOff, powerRatio

	w.last = Status{
		Mode: w.mode, CCDTemp: ccd, Ambient: ambient, Setpoint: target,
		PWM: pwm, AmbientOff: ambOff, PowerRatio: powerRatio,
	}
	if w.logger != nil {
		w.logger.Printf("%s, ccd_temp=%.3f (%.1fF), pwm=%.3f, ambient=%.3f (%.1fF), ambient_offset=%.3f, power_ratio=%.4f, target_power=%.3f",
			time.Now().Format(time.RFC3339), ccd, temperature.C2F(temperature.Celsius(ccd)), pwm,
			ambient, temperature.C2F(temperature.Celsius(ambient)), ambOff, powerRatio, targetPower)
	}
	return nil
}

// Status returns the most recent cycle's snapshot.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
