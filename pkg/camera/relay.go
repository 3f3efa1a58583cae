package camera

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Relay fans process output out to every consumer in a registry. It never
// waits on a consumer: slow ones lose chunks, dead ones are removed.
type Relay struct {
	registry *Registry
	codec    Codec
}

// NewRelay creates a relay reading membership from registry.
func NewRelay(registry *Registry, codec Codec) *Relay {
	return &Relay{registry: registry, codec: codec}
}

// OnChunk delivers one chunk of process output. The chunk is shared between
// consumers and must not be modified afterwards.
func (r *Relay) OnChunk(chunk []byte) {
	var dropped int64
	for _, m := range r.registry.snapshot() {
		err := m.consumer.Write(chunk)
		switch {
		case err == nil:
		case errors.Is(err, ErrHighWater):
			dropped++
		default:
			slog.Debug("Removing dead consumer", "codec", r.codec, "token", m.token, "error", err)
			r.registry.Remove(m.token)
		}
	}
	if dropped > 0 {
		framesDropped.Add(context.Background(), dropped, metric.WithAttributes(attribute.String("codec", string(r.codec))))
	}
}
