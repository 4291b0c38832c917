package handler

import (
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/infrastructure/realtime"
	"github.com/99minutos/courier-tracking/pkg/wire"
)

func toDeliveryResponse(d *domain.Delivery) deliveryResponse {
	return deliveryResponse{
		Delivery: wire.Delivery{
			ID:                d.ID,
			CourierID:         d.CourierID,
			CourierName:       d.CourierName,
			ProductName:       d.ProductName,
			Address:           d.Address,
			DestinationLat:    d.DestinationLat,
			DestinationLng:    d.DestinationLng,
			Status:            string(d.Status),
			StatusText:        d.Status.Text(),
			EstimatedDelivery: d.EstimatedDelivery,
			CreatedAt:         d.CreatedAt,
		},
		CustomerID:         d.CustomerID,
		ProductDescription: d.ProductDescription,
		UpdatedAt:          d.UpdatedAt,
		Links: deliveryLinks{
			Self:      "/v1/deliveries/" + d.ID,
			Locations: "/v1/deliveries/" + d.ID + "/locations",
			Stream:    "/v1/locations/ws/" + d.ID,
		},
	}
}

func toLocationResponses(locs []*domain.Location) []wire.Location {
	out := make([]wire.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, realtime.ToWire(l))
	}
	return out
}
