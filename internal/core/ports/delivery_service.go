package ports

import (
	"context"
	"time"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// CreateDeliveryInput carries all data needed to open a new delivery.
type CreateDeliveryInput struct {
	ProductName        string
	ProductDescription string
	Address            string
	DestinationLat     float64
	DestinationLng     float64
	EstimatedDelivery  time.Time
	Caller             domain.Caller
}

// AssignCourierInput assigns a PENDING delivery to a courier.
type AssignCourierInput struct {
	DeliveryID string
	CourierID  string
}

// DeliveryService defines use-case operations for deliveries.
type DeliveryService interface {
	Create(ctx context.Context, input CreateDeliveryInput) (*domain.Delivery, error)
	Get(ctx context.Context, id string, caller domain.Caller) (*domain.Delivery, error)
	List(ctx context.Context, caller domain.Caller) ([]*domain.Delivery, error)
	Assign(ctx context.Context, input AssignCourierInput) (*domain.Delivery, error)
	Complete(ctx context.Context, id string, caller domain.Caller) (*domain.Delivery, error)
}
