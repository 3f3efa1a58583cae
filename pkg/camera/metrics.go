package camera

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var tracer = otel.Tracer("github.com/wachiwi/pi-control/pkg/camera")

var (
	framesDropped  metric.Int64Counter       = noop.Int64Counter{}
	consumersGauge metric.Int64UpDownCounter = noop.Int64UpDownCounter{}
	processStarts  metric.Int64Counter       = noop.Int64Counter{}
	restarts       metric.Int64Counter       = noop.Int64Counter{}
)

func init() {
	meter := otel.Meter("github.com/wachiwi/pi-control/pkg/camera")

	if c, err := meter.Int64Counter("camera.frames.dropped",
		metric.WithDescription("Chunks dropped for consumers above their high-water mark"),
		metric.WithUnit("{chunks}"),
	); err != nil {
		slog.Error("Failed to create dropped frames metric", "error", err)
	} else {
		framesDropped = c
	}

	if c, err := meter.Int64UpDownCounter("camera.consumers",
		metric.WithDescription("Attached stream consumers"),
		metric.WithUnit("{consumers}"),
	); err != nil {
		slog.Error("Failed to create consumers metric", "error", err)
	} else {
		consumersGauge = c
	}

	if c, err := meter.Int64Counter("camera.process.starts",
		metric.WithDescription("Capture processes spawned"),
		metric.WithUnit("{processes}"),
	); err != nil {
		slog.Error("Failed to create process starts metric", "error", err)
	} else {
		processStarts = c
	}

	if c, err := meter.Int64Counter("camera.restarts",
		metric.WithDescription("Capture process restarts by reason"),
		metric.WithUnit("{restarts}"),
	); err != nil {
		slog.Error("Failed to create restarts metric", "error", err)
	} else {
		restarts = c
	}
}
