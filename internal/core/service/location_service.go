package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

type locationService struct {
	deliveries  ports.DeliveryRepository
	locations   ports.LocationRepository
	bus         ports.EventPublisher // nil when the event bus is disabled
	broadcaster ports.Broadcaster
	log         zerolog.Logger
}

// NewLocationService returns a LocationService implementation. bus may be nil.
func NewLocationService(
	deliveries ports.DeliveryRepository,
	locations ports.LocationRepository,
	bus ports.EventPublisher,
	broadcaster ports.Broadcaster,
	log zerolog.Logger,
) ports.LocationService {
	return &locationService{
		deliveries:  deliveries,
		locations:   locations,
		bus:         bus,
		broadcaster: broadcaster,
		log:         log,
	}
}

// Report validates, authorizes, persists and distributes a single position
// report. Steps 1-4 are gates: a failure returns before any side effect.
// Failures after persistence are logged and never change the response.
func (s *locationService) Report(ctx context.Context, in ports.ReportLocationInput) (*domain.Location, error) {
	// 1. Schema validation.
	if strings.TrimSpace(in.DeliveryID) == "" {
		return nil, fmt.Errorf("report location: %w: deliveryId is required", domain.ErrInvalidInput)
	}

	// 2. Only couriers report positions.
	if in.Caller.Role != domain.RoleCourier {
		return nil, fmt.Errorf("report location: %w: only couriers can report locations", domain.ErrForbidden)
	}

	// 3. Ownership.
	delivery, err := s.deliveries.FindByID(ctx, in.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("report location: %w", err)
	}
	if delivery.CourierID != in.Caller.ID {
		return nil, fmt.Errorf("report location: %w: courier is not assigned to this delivery", domain.ErrForbidden)
	}

	// 4. Persist; the store assigns id and timestamp.
	loc, err := s.locations.Create(ctx, in.DeliveryID, in.Latitude, in.Longitude)
	if err != nil {
		return nil, fmt.Errorf("report location: persist: %w", err)
	}

	// 5. First report moves the delivery out of ASSIGNED. Losing the race to
	// another report is fine: both want the same value.
	if delivery.Status == domain.StatusAssigned {
		if _, err := s.deliveries.UpdateStatus(ctx, delivery.ID, domain.StatusAssigned, domain.StatusInTransit); err != nil {
			s.log.Warn().Err(err).Str("delivery_id", delivery.ID).Msg("failed to mark delivery in transit")
		}
	}

	// 6. Event bus side channel.
	if s.bus != nil {
		event := domain.LocationEvent{
			DeliveryID:  loc.DeliveryID,
			CourierID:   in.Caller.ID,
			CourierName: in.Caller.Name,
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			Timestamp:   loc.Timestamp,
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.log.Warn().Err(err).Str("delivery_id", loc.DeliveryID).Msg("event bus publish failed")
		}
	}

	// 7. Fan out to live viewers.
	delivered := s.broadcaster.Broadcast(loc.DeliveryID, loc)

	s.log.Debug().
		Str("delivery_id", loc.DeliveryID).
		Str("location_id", loc.ID).
		Int("subscribers", delivered).
		Msg("location ingested")

	return loc, nil
}

// History returns the full ordered track of a delivery the caller may view.
func (s *locationService) History(ctx context.Context, deliveryID string, caller domain.Caller) ([]*domain.Location, error) {
	delivery, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("location history: %w", err)
	}
	if !delivery.VisibleTo(caller) {
		return nil, fmt.Errorf("location history: %w", domain.ErrForbidden)
	}

	locs, err := s.locations.ListByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("location history: %w", err)
	}
	return locs, nil
}
