//go:build !linux

package indicator

import "log/slog"

// GPIOLED logs instead of driving hardware.
type GPIOLED struct {
	offset int
}

func OpenGPIO(chipName string, offset int) (*GPIOLED, error) {
	slog.Info("[MOCK] Status LED without GPIO", "chip", chipName, "line", offset)
	return &GPIOLED{offset: offset}, nil
}

func (g *GPIOLED) Set(on bool) error {
	slog.Debug("[MOCK] Status LED", "line", g.offset, "on", on)
	return nil
}

func (g *GPIOLED) Close() error { return nil }
