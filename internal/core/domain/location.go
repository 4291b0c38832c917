package domain

import "time"

// Location is one persisted position report. ID and Timestamp are assigned
// by the store; records are never updated once created.
type Location struct {
	ID         string    `json:"id" bson:"_id"`
	DeliveryID string    `json:"deliveryId" bson:"delivery_id"`
	Latitude   float64   `json:"latitude" bson:"latitude"`
	Longitude  float64   `json:"longitude" bson:"longitude"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// LocationEvent is the enriched payload published on the event bus.
type LocationEvent struct {
	DeliveryID  string    `json:"deliveryId"`
	CourierID   string    `json:"courierId"`
	CourierName string    `json:"courierName"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Timestamp   time.Time `json:"timestamp"`
}
