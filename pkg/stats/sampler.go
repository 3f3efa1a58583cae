// Package stats samples host metrics and broadcasts them periodically.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
	"github.com/wachiwi/pi-control/pkg/system"
)

// NotAvailable replaces values that could not be sampled.
const NotAvailable = "N/A"

// Stats is the systemStats payload.
type Stats struct {
	CPULoad       string  `json:"cpuLoad"`
	MemoryUsed    string  `json:"memoryUsed"`
	Temperature   string  `json:"temperature"`
	IsRaspberryPi bool    `json:"isRaspberryPi"`
	Uptime        uint64  `json:"uptime"`
	Model         string  `json:"model"`
	Hostname      string  `json:"hostname"`
	DiskUsage     *string `json:"diskUsage"`
	Error         string  `json:"error,omitempty"`
}

// Probes are the metric sources of a Sampler.
type Probes struct {
	CPUPercent  func(ctx context.Context) (float64, error)
	MemPercent  func(ctx context.Context) (float64, error)
	Temperature func(ctx context.Context) (float64, error)
	Host        func(ctx context.Context) (*host.InfoStat, error)
	DiskPercent func(ctx context.Context) (float64, error)
}

// Sampler collects Stats from its probes.
type Sampler struct {
	board  system.Board
	probes Probes
}

// NewSampler creates a sampler backed by gopsutil.
func NewSampler(board system.Board) *Sampler {
	return &Sampler{board: board, probes: hostProbes()}
}

// NewSamplerWithProbes creates a sampler with custom probes.
func NewSamplerWithProbes(board system.Board, p Probes) *Sampler {
	return &Sampler{board: board, probes: p}
}

// Sample collects the current stats. A failing probe degrades its fields
// to placeholders instead of failing the sample.
func (s *Sampler) Sample(ctx context.Context) Stats {
	st := Stats{
		CPULoad:       NotAvailable,
		MemoryUsed:    NotAvailable,
		Temperature:   NotAvailable,
		IsRaspberryPi: s.board.IsRaspberryPi,
		Model:         s.board.Model,
		Hostname:      "Unknown",
	}
	if st.Model == "" {
		st.Model = "Unknown"
	}

	var errs []error
	if v, err := s.probes.CPUPercent(ctx); err == nil {
		st.CPULoad = percent(v)
		cpuLoadGauge.Record(ctx, v)
	} else {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	}
	if v, err := s.probes.MemPercent(ctx); err == nil {
		st.MemoryUsed = percent(v)
		memoryUsedGauge.Record(ctx, v)
	} else {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}
	if v, err := s.probes.Temperature(ctx); err == nil {
		st.Temperature = percent(v)
		temperatureGauge.Record(ctx, v)
	}
	if info, err := s.probes.Host(ctx); err == nil {
		st.Uptime = info.Uptime
		uptimeGauge.Record(ctx, int64(info.Uptime))
		if info.Hostname != "" {
			st.Hostname = info.Hostname
		}
	} else {
		errs = append(errs, fmt.Errorf("host: %w", err))
		if name, err := os.Hostname(); err == nil {
			st.Hostname = name
		}
	}
	if v, err := s.probes.DiskPercent(ctx); err == nil {
		d := percent(v)
		st.DiskUsage = &d
		diskUsedGauge.Record(ctx, v)
	}

	if err := errors.Join(errs...); err != nil {
		st.Error = err.Error()
		slog.Debug("Failed to sample some system stats", "error", err)
	}
	return st
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func hostProbes() Probes {
	return Probes{
		CPUPercent: func(ctx context.Context) (float64, error) {
			v, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil {
				return 0, err
			}
			if len(v) == 0 {
				return 0, errors.New("no cpu sample")
			}
			return v[0], nil
		},
		MemPercent: func(ctx context.Context) (float64, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return vm.UsedPercent, nil
		},
		Temperature: cpuTemperature,
		Host:        host.InfoWithContext,
		DiskPercent: func(ctx context.Context) (float64, error) {
			u, err := disk.UsageWithContext(ctx, "/")
			if err != nil {
				return 0, err
			}
			return u.UsedPercent, nil
		},
	}
}

// cpuTemperature prefers the SoC thermal zone and falls back to the first
// sensor reporting a value.
func cpuTemperature(ctx context.Context) (float64, error) {
	temps, err := sensors.TemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err == nil {
			err = errors.New("no temperature sensors")
		}
		return 0, err
	}
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if t.Temperature > 0 && (strings.Contains(key, "cpu") || strings.Contains(key, "soc")) {
			return t.Temperature, nil
		}
	}
	for _, t := range temps {
		if t.Temperature > 0 {
			return t.Temperature, nil
		}
	}
	return 0, errors.New("no temperature reading")
}
