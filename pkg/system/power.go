// Package system inspects the host board and performs power actions.
package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrPowerDisabled is returned by Power when power commands are not allowed.
var ErrPowerDisabled = errors.New("power commands are disabled")

// Runner executes a host command.
type Runner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Power reboots or shuts the device down, through the balena supervisor
// when one is configured and with sudo otherwise.
type Power struct {
	Enabled bool
	Balena  *SupervisorClient
	Run     Runner
}

// NewPower creates a power executor. A balena supervisor is used when its
// environment is present.
func NewPower(enabled bool) *Power {
	p := &Power{Enabled: enabled, Run: runCommand}
	if c, err := NewSupervisorClient(); err == nil {
		p.Balena = c
	}
	return p
}

func (p *Power) Reboot(ctx context.Context) error {
	if !p.Enabled {
		return ErrPowerDisabled
	}
	slog.Warn("Rebooting device", "balena", p.Balena != nil)
	if p.Balena != nil {
		return p.Balena.Reboot(ctx)
	}
	return p.Run(ctx, "sudo", "/sbin/reboot")
}

func (p *Power) Shutdown(ctx context.Context) error {
	if !p.Enabled {
		return ErrPowerDisabled
	}
	slog.Warn("Shutting down device", "balena", p.Balena != nil)
	if p.Balena != nil {
		return p.Balena.Shutdown(ctx)
	}
	return p.Run(ctx, "sudo", "/sbin/shutdown", "-h", "now")
}
