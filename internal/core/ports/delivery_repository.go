package ports

import (
	"context"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// DeliveryFilter scopes a delivery listing. Empty fields do not filter.
type DeliveryFilter struct {
	CustomerID string
	CourierID  string
	Status     string
}

// DeliveryRepository defines persistence operations for deliveries.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	FindByID(ctx context.Context, id string) (*domain.Delivery, error)
	List(ctx context.Context, filter DeliveryFilter) ([]*domain.Delivery, error)

	// UpdateStatus sets status only while the stored status still equals
	// from. It reports whether a document was modified; a false result with
	// a nil error means another writer got there first.
	UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) (bool, error)

	// Assign sets the courier of a PENDING delivery and moves it to ASSIGNED.
	Assign(ctx context.Context, id, courierID, courierName string) (bool, error)
}
