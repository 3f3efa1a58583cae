//go:build linux

package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOLED is an LED on a gpiochip line.
type GPIOLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenGPIO requests offset on chipName as an output, initially off.
func OpenGPIO(chipName string, offset int) (*GPIOLED, error) {
	c, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("pi-control"))
	if err != nil {
		return nil, fmt.Errorf("failed to open chip: %w", err)
	}
	l, err := c.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to request line %d: %w", offset, err)
	}
	return &GPIOLED{chip: c, line: l}, nil
}

func (g *GPIOLED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *GPIOLED) Close() error {
	g.line.Close()
	return g.chip.Close()
}
