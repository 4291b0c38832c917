package ports

import (
	"context"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// LocationRepository persists position reports. Create assigns the record ID
// and timestamp; callers never supply them.
type LocationRepository interface {
	Create(ctx context.Context, deliveryID string, latitude, longitude float64) (*domain.Location, error)
	// ListByDelivery returns every record of a delivery ordered by timestamp.
	ListByDelivery(ctx context.Context, deliveryID string) ([]*domain.Location, error)
}
