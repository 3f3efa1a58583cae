package camera

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDeviceBusy is returned when another pipeline holds the camera sensor.
var ErrDeviceBusy = errors.New("camera device busy")

// Device arbitrates the camera sensor between pipelines. libcamera opens
// the sensor exclusively, so at most one capture process may hold it. The
// first holder wins; later claims fail until its process has exited.
type Device struct {
	mu    sync.Mutex
	owner string
	held  *lease
}

// NewDevice creates an unclaimed device.
func NewDevice() *Device {
	return &Device{}
}

// Owner returns the name of the current holder, or "" when free.
func (d *Device) Owner() string {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}

// acquire claims the device for owner. A nil Device never blocks anyone and
// hands out nil leases.
func (d *Device) acquire(owner string) (*lease, error) {
	if d == nil {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held != nil {
		return nil, fmt.Errorf("%w: in use by %s", ErrDeviceBusy, d.owner)
	}
	l := &lease{dev: d}
	d.held = l
	d.owner = owner
	return l, nil
}

type lease struct {
	dev  *Device
	once sync.Once
}

// release gives the device back. It is safe to call more than once and on
// a nil lease.
func (l *lease) release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		d := l.dev
		d.mu.Lock()
		if d.held == l {
			d.held = nil
			d.owner = ""
		}
		d.mu.Unlock()
	})
}
