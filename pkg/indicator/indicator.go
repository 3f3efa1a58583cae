// Package indicator drives the camera-active status LED.
package indicator

import (
	"log/slog"
	"sync"
)

// LED is a single on/off output.
type LED interface {
	Set(on bool) error
	Close() error
}

// Indicator lights the LED while any of the tracked sources is active.
type Indicator struct {
	mu     sync.Mutex
	led    LED
	active map[string]bool
	lit    bool
}

// New wraps led. A nil led gives an indicator that only tracks state.
func New(led LED) *Indicator {
	return &Indicator{led: led, active: make(map[string]bool)}
}

// Update records whether source is active and switches the LED when the
// combined state changes.
func (i *Indicator) Update(source string, active bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if active {
		i.active[source] = true
	} else {
		delete(i.active, source)
	}
	lit := len(i.active) > 0
	if lit == i.lit {
		return
	}
	i.lit = lit
	if i.led == nil {
		return
	}
	if err := i.led.Set(lit); err != nil {
		slog.Warn("Failed to switch status LED", "on", lit, "error", err)
	}
}

// Lit reports the current LED state.
func (i *Indicator) Lit() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lit
}

// Close switches the LED off and releases it.
func (i *Indicator) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.led == nil {
		return nil
	}
	_ = i.led.Set(false)
	return i.led.Close()
}
