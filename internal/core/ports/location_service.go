package ports

import (
	"context"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// ReportLocationInput is the DTO passed from the transport layer to the
// ingestion service.
type ReportLocationInput struct {
	DeliveryID string
	Latitude   float64
	Longitude  float64
	Caller     domain.Caller
}

// EventPublisher is the best-effort event bus sink.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LocationEvent) error
}

// Broadcaster fans a persisted record out to the live subscribers of its
// delivery. It returns how many subscribers received the payload.
type Broadcaster interface {
	Broadcast(deliveryID string, loc *domain.Location) int
}

// LocationService ingests position reports and serves a delivery's track.
type LocationService interface {
	Report(ctx context.Context, input ReportLocationInput) (*domain.Location, error)
	History(ctx context.Context, deliveryID string, caller domain.Caller) ([]*domain.Location, error)
}
