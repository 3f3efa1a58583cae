package stats

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Gauges mirroring the systemStats payload, recorded on every sample.
var (
	cpuLoadGauge     metric.Float64Gauge = noop.Float64Gauge{}
	memoryUsedGauge  metric.Float64Gauge = noop.Float64Gauge{}
	temperatureGauge metric.Float64Gauge = noop.Float64Gauge{}
	diskUsedGauge    metric.Float64Gauge = noop.Float64Gauge{}
	uptimeGauge      metric.Int64Gauge   = noop.Int64Gauge{}
)

func init() {
	meter := otel.Meter("github.com/wachiwi/pi-control/pkg/stats")

	float := func(name, desc, unit string, dst *metric.Float64Gauge) {
		g, err := meter.Float64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			slog.Error("Failed to create gauge", "name", name, "error", err)
			return
		}
		*dst = g
	}
	float("host.cpu.load", "CPU load", "%", &cpuLoadGauge)
	float("host.memory.used", "Memory in use", "%", &memoryUsedGauge)
	float("host.temperature", "SoC temperature", "Cel", &temperatureGauge)
	float("host.disk.used", "Root filesystem in use", "%", &diskUsedGauge)

	if g, err := meter.Int64Gauge("host.uptime", metric.WithDescription("Seconds since boot"), metric.WithUnit("s")); err != nil {
		slog.Error("Failed to create uptime gauge", "error", err)
	} else {
		uptimeGauge = g
	}
}
