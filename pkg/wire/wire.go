// Package wire holds the JSON shapes exchanged between the tracking API and
// its viewers: location records, delivery detail and the tagged frames pushed
// over the subscription channel.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Location is the serialized form of a persisted position report.
type Location struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"deliveryId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
}

// Delivery carries the delivery fields a viewer needs for display.
type Delivery struct {
	ID                string    `json:"id"`
	CourierID         string    `json:"courierId,omitempty"`
	CourierName       string    `json:"courierName,omitempty"`
	ProductName       string    `json:"productName"`
	Address           string    `json:"address"`
	DestinationLat    float64   `json:"destinationLat"`
	DestinationLng    float64   `json:"destinationLng"`
	Status            string    `json:"status"`
	StatusText        string    `json:"statusText,omitempty"`
	EstimatedDelivery time.Time `json:"estimatedDelivery"`
	CreatedAt         time.Time `json:"createdAt"`
}

// FrameType tags a push frame.
type FrameType string

const (
	// FrameAppend carries one new record to add to the viewer's track.
	FrameAppend FrameType = "append"
	// FrameSnapshot carries a full track that replaces the viewer's track.
	FrameSnapshot FrameType = "snapshot"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one message on the subscription channel.
type Frame struct {
	Type      FrameType  `json:"type"`
	Location  *Location  `json:"location,omitempty"`
	Locations []Location `json:"locations,omitempty"`
}

// Append builds an append frame.
func Append(loc Location) Frame {
	return Frame{Type: FrameAppend, Location: &loc}
}

// Snapshot builds a snapshot frame.
func Snapshot(locs []Location) Frame {
	if locs == nil {
		locs = []Location{}
	}
	return Frame{Type: FrameSnapshot, Locations: locs}
}

// Encode marshals a frame.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses and validates a frame. Any error wraps ErrMalformedFrame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch f.Type {
	case FrameAppend:
		if f.Location == nil || f.Location.ID == "" {
			return Frame{}, fmt.Errorf("%w: append frame without a location id", ErrMalformedFrame)
		}
	case FrameSnapshot:
		for i, l := range f.Locations {
			if l.ID == "" {
				return Frame{}, fmt.Errorf("%w: snapshot entry %d without an id", ErrMalformedFrame, i)
			}
		}
		if f.Locations == nil {
			f.Locations = []Location{}
		}
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
	return f, nil
}
