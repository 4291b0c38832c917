package domain

import (
	"errors"
	"time"
)

// DeliveryStatus represents the lifecycle state of a delivery.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "PENDING"
	StatusAssigned  DeliveryStatus = "ASSIGNED"
	StatusInTransit DeliveryStatus = "IN_TRANSIT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusCancelled DeliveryStatus = "CANCELLED"
)

// validTransitions defines the allowed state machine transitions.
var validTransitions = map[DeliveryStatus][]DeliveryStatus{
	StatusPending:   {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusInTransit, StatusDelivered, StatusCancelled},
	StatusInTransit: {StatusDelivered},
}

var ErrInvalidTransition = errors.New("invalid status transition")
var ErrDeliveryNotFound = errors.New("delivery not found")

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Text is the human-readable label shown next to the status badge.
func (s DeliveryStatus) Text() string {
	switch s {
	case StatusPending:
		return "Waiting for a courier"
	case StatusAssigned:
		return "Courier assigned"
	case StatusInTransit:
		return "On the way"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// Delivery is the aggregate a courier reports positions for.
type Delivery struct {
	ID                 string         `json:"id" bson:"_id"`
	CustomerID         string         `json:"customerId" bson:"customer_id"`
	CourierID          string         `json:"courierId,omitempty" bson:"courier_id,omitempty"`
	CourierName        string         `json:"courierName,omitempty" bson:"courier_name,omitempty"`
	ProductName        string         `json:"productName" bson:"product_name"`
	ProductDescription string         `json:"productDescription,omitempty" bson:"product_description,omitempty"`
	Address            string         `json:"address" bson:"address"`
	DestinationLat     float64        `json:"destinationLat" bson:"destination_lat"`
	DestinationLng     float64        `json:"destinationLng" bson:"destination_lng"`
	Status             DeliveryStatus `json:"status" bson:"status"`
	EstimatedDelivery  time.Time      `json:"estimatedDelivery" bson:"estimated_delivery"`
	CreatedAt          time.Time      `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time      `json:"updatedAt" bson:"updated_at"`
}

// VisibleTo reports whether the caller may read the delivery and its track.
func (d *Delivery) VisibleTo(c Caller) bool {
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleCourier:
		return d.CourierID != "" && d.CourierID == c.ID
	case RoleCustomer:
		return d.CustomerID == c.ID
	default:
		return false
	}
}
