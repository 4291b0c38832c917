package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/api/metrics"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/infrastructure/realtime"
)

// LocationHandler serves the ingestion endpoint and the full-fetch endpoint.
type LocationHandler struct {
	service ports.LocationService
}

func NewLocationHandler(service ports.LocationService) *LocationHandler {
	return &LocationHandler{service: service}
}

// Report ingests one courier position.
//
// @Summary      Report a courier location
// @Tags         locations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      reportLocationRequest  true  "Position report"
// @Success      201   {object}  wire.Location
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /v1/locations [post]
func (h *LocationHandler) Report(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.IngestionDuration.Observe(time.Since(start).Seconds()) }()

	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req reportLocationRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.LocationsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return err
	}

	loc, err := h.service.Report(c.Request().Context(), ports.ReportLocationInput{
		DeliveryID: req.DeliveryID,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Caller:     caller,
	})
	if err != nil {
		metrics.LocationsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return err
	}

	metrics.LocationsIngestedTotal.Inc()
	return c.JSON(http.StatusCreated, realtime.ToWire(loc))
}

// History returns every location of a delivery ordered by timestamp.
//
// @Summary      Delivery location history
// @Tags         locations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Delivery ID"
// @Success      200  {array}   wire.Location
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/deliveries/{id}/locations [get]
func (h *LocationHandler) History(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	locs, err := h.service.History(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLocationResponses(locs))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrDeliveryNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
