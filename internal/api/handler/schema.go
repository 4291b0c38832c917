package handler

import (
	"time"

	"github.com/99minutos/courier-tracking/pkg/wire"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type registerRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role"     validate:"required,oneof=ADMIN COURIER CUSTOMER"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// --- Locations ---

// reportLocationRequest uses pointers so a missing coordinate is told apart
// from a legitimate 0.
type reportLocationRequest struct {
	DeliveryID string   `json:"deliveryId" validate:"required"`
	Latitude   *float64 `json:"latitude"   validate:"required"`
	Longitude  *float64 `json:"longitude"  validate:"required"`
}

// --- Deliveries ---

type createDeliveryRequest struct {
	ProductName        string    `json:"productName"        validate:"required"`
	ProductDescription string    `json:"productDescription"`
	Address            string    `json:"address"            validate:"required"`
	DestinationLat     *float64  `json:"destinationLat"     validate:"required"`
	DestinationLng     *float64  `json:"destinationLng"     validate:"required"`
	EstimatedDelivery  time.Time `json:"estimatedDelivery"`
}

type assignCourierRequest struct {
	CourierID string `json:"courierId" validate:"required"`
}

type deliveryLinks struct {
	Self      string `json:"self"`
	Locations string `json:"locations"`
	Stream    string `json:"stream"`
}

// deliveryResponse is the delivery detail plus navigation links.
type deliveryResponse struct {
	wire.Delivery
	CustomerID         string        `json:"customerId"`
	ProductDescription string        `json:"productDescription,omitempty"`
	UpdatedAt          time.Time     `json:"updatedAt"`
	Links              deliveryLinks `json:"_links"`
}

type listDeliveriesResponse struct {
	Data  []deliveryResponse `json:"data"`
	Total int                `json:"total"`
}
