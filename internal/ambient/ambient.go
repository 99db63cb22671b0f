// Package ambient implements the ambient environment sensor façade
// (temperature/humidity), adapted from the teacher's fluke DewK polling
// idiom and renamed to this domain's observatory enclosure sensor.
package ambient

import (
	"fmt"
	"math/rand"

	"github.com/munkacsymj/astrosystem/comm"
	"github.com/pkg/errors"
)

// Reading is one sensor sample.
type Reading struct {
	TempC, HumidityPct, PressureHPa float64
}

// Sensor is the façade the cooler controller depends on for ambient
// temperature readings.
type Sensor interface {
	Read() (Reading, error)
}

// DewKSensor polls a DewK-style environmental sensor over TCP or serial,
// adapted from fluke.DewK's Conntype-switched polling.
type DewKSensor struct {
	dev      comm.RemoteDevice
	isSerial bool
}

// New returns a sensor connecting to addr; isSerial selects serial vs TCP transport.
func New(addr string, isSerial bool) *DewKSensor {
	return &DewKSensor{dev: comm.NewRemoteDevice(addr, isSerial, nil, nil), isSerial: isSerial}
}

// Read polls the sensor for a fresh temperature/humidity sample.
func (d *DewKSensor) Read() (Reading, error) {
	resp, err := d.dev.OpenSendRecvClose([]byte("READ?"))
	if err != nil {
		return Reading{}, errors.Wrap(err, "ambient: read")
	}
	var t, h, p float64
	if _, err := fmt.Sscanf(string(resp), "%f,%f,%f", &t, &h, &p); err != nil {
		return Reading{}, errors.Wrap(err, "ambient: parse reading")
	}
	return Reading{TempC: t, HumidityPct: h, PressureHPa: p}, nil
}

// MockSensor returns plausible ambient readings without hardware, following
// the teacher's MockDewK +/- jitter pattern.
type MockSensor struct{}

// Read returns 15C +/-1, 40%RH +/-5, 1013hPa +/-2.
func (MockSensor) Read() (Reading, error) {
	return Reading{
		TempC:       15 + rand.Float64()*2 - 1,
		HumidityPct: 40 + rand.Float64()*10 - 5,
		PressureHPa: 1013 + rand.Float64()*4 - 2,
	}, nil
}
