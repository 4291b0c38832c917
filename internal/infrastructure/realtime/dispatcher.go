package realtime

import (
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/api/metrics"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/pkg/wire"
)

// Dispatcher delivers location records to the subscribers held by a Registry.
type Dispatcher struct {
	registry *Registry
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log}
}

// Broadcast serializes loc once and sends the same payload to every current
// subscriber of deliveryID. A failed send prunes that subscriber and moves on.
// It returns the number of successful sends.
func (d *Dispatcher) Broadcast(deliveryID string, loc *domain.Location) int {
	subs := d.registry.Subscribers(deliveryID)
	if len(subs) == 0 {
		return 0
	}

	payload, err := wire.Encode(wire.Append(ToWire(loc)))
	if err != nil {
		d.log.Error().Err(err).Str("delivery_id", deliveryID).Msg("failed to encode location frame")
		return 0
	}

	sent := 0
	for _, conn := range subs {
		if err := conn.Send(payload); err != nil {
			metrics.BroadcastSendsTotal.WithLabelValues("failed").Inc()
			if d.registry.Unsubscribe(deliveryID, conn) {
				_ = conn.Close()
			}
			d.log.Warn().Err(err).
				Str("delivery_id", deliveryID).
				Str("conn_id", conn.ID()).
				Msg("subscriber send failed, removed")
			continue
		}
		metrics.BroadcastSendsTotal.WithLabelValues("ok").Inc()
		sent++
	}
	return sent
}

// ToWire maps a persisted record to its serialized form.
func ToWire(loc *domain.Location) wire.Location {
	return wire.Location{
		ID:         loc.ID,
		DeliveryID: loc.DeliveryID,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Timestamp:  loc.Timestamp.UTC(),
	}
}
