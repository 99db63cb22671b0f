package camera

import (
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/pkg/errors"
)

// USBCamera discovers the camera over USB by VID/PID and treats the device
// handle as opaque — the vendor protocol that talks to it once opened is
// out of scope here, matching this façade's role as a thin hardware
// boundary rather than a driver reimplementation.
type USBCamera struct {
	VID, PID gousb.ID

	mu      sync.Mutex
	ctx     *gousb.Context
	dev     *gousb.Device
	desc    Descriptor
	binH    int
	binV    int
	gain    int
	expires time.Time
}

// NewUSBCamera returns a USBCamera bound to the given VID/PID; callers must
// call Open before using it.
func NewUSBCamera(vid, pid gousb.ID) *USBCamera {
	return &USBCamera{VID: vid, PID: pid}
}

// Open discovers and claims the single device matching VID/PID.
func (c *USBCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = gousb.NewContext()
	devs, err := c.ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		return d.Vendor == c.VID && d.Product == c.PID
	})
	if err == nil && len(devs) > 1 {
		err = errors.Errorf("camera: %d matching usb devices found, want exactly one", len(devs))
	}
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		return errors.Wrap(err, "camera: open usb device")
	}
	if len(devs) == 0 {
		return errors.New("camera: no matching usb device found")
	}
	c.dev = devs[0]
	c.binH, c.binV, c.gain = 1, 1, 0
	return nil
}

// Close releases the USB context.
func (c *USBCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		c.dev.Close()
	}
	if c.ctx != nil {
		return c.ctx.Close()
	}
	return nil
}

// Descriptor returns the camera's static identity information.
func (c *USBCamera) Descriptor() (Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return Descriptor{}, errors.New("camera: not open")
	}
	return c.desc, nil
}

// Configure validates and records the binning and gain state; the AOI is
// not stored. This façade does not speak the vendor protocol, so nothing
// is forwarded to the hardware and ReadFrame does not use these values.
func (c *USBCamera) Configure(aoiLeft, aoiTop, aoiWidth, aoiHeight, binH, binV, gainState int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if binH < 1 || binV < 1 {
		return errors.New("camera: bin factors must be >= 1")
	}
	c.binH, c.binV, c.gain = binH, binV, gainState
	return nil
}

// StartExposure is unimplemented at the opaque-device boundary; a vendor
// SDK binding would issue the hardware trigger here.
func (c *USBCamera) StartExposure(durationSeconds float64, useShutter bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires = time.Now().Add(time.Duration(durationSeconds * float64(time.Second)))
	return nil
}

// RemainingTime reports integration time left.
func (c *USBCamera) RemainingTime() (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := time.Until(c.expires)
	if d < 0 {
		d = 0
	}
	return d, nil
}

// AbortExposure is unimplemented at the opaque-device boundary.
func (c *USBCamera) AbortExposure() error {
	return errors.New("camera: abort not supported by this device binding")
}

// ReadFrame is unimplemented at the opaque-device boundary; see MockCamera
// for a backend exercised by the rest of the exposure pipeline in tests.
func (c *USBCamera) ReadFrame() ([]uint16, error) {
	return nil, errors.New("camera: frame readout requires a vendor-specific binding")
}

// EGain returns 1.0 when no vendor EGAIN table is bound.
func (c *USBCamera) EGain() (float64, error) {
	return 1.0, nil
}
