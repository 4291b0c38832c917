package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// DeliveryHandler handles HTTP requests for delivery operations.
type DeliveryHandler struct {
	service ports.DeliveryService
}

func NewDeliveryHandler(service ports.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

// Create opens a new delivery for the caller.
//
// @Summary      Create a delivery
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createDeliveryRequest  true  "Delivery details"
// @Success      201   {object}  deliveryResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/deliveries [post]
func (h *DeliveryHandler) Create(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	var req createDeliveryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	d, err := h.service.Create(c.Request().Context(), ports.CreateDeliveryInput{
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		Address:            req.Address,
		DestinationLat:     *req.DestinationLat,
		DestinationLng:     *req.DestinationLng,
		EstimatedDelivery:  req.EstimatedDelivery,
		Caller:             caller,
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/v1/deliveries/"+d.ID)
	return c.JSON(http.StatusCreated, toDeliveryResponse(d))
}

// List returns the deliveries visible to the caller.
//
// @Summary      List deliveries
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listDeliveriesResponse
// @Router       /v1/deliveries [get]
func (h *DeliveryHandler) List(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	items, err := h.service.List(c.Request().Context(), caller)
	if err != nil {
		return err
	}

	data := make([]deliveryResponse, 0, len(items))
	for _, d := range items {
		data = append(data, toDeliveryResponse(d))
	}
	return c.JSON(http.StatusOK, listDeliveriesResponse{Data: data, Total: len(data)})
}

// Get returns a delivery detail.
//
// @Summary      Get a delivery
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Delivery ID"
// @Success      200  {object}  deliveryResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/deliveries/{id} [get]
func (h *DeliveryHandler) Get(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	d, err := h.service.Get(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDeliveryResponse(d))
}

// Assign gives a PENDING delivery to a courier.
//
// @Summary      Assign a courier
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Delivery ID"
// @Param        body  body      assignCourierRequest  true  "Courier"
// @Success      200   {object}  deliveryResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/deliveries/{id}/assign [post]
func (h *DeliveryHandler) Assign(c echo.Context) error {
	var req assignCourierRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	d, err := h.service.Assign(c.Request().Context(), ports.AssignCourierInput{
		DeliveryID: c.Param("id"),
		CourierID:  req.CourierID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDeliveryResponse(d))
}

// Complete marks the caller's delivery as DELIVERED.
//
// @Summary      Complete a delivery
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Delivery ID"
// @Success      200  {object}  deliveryResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/deliveries/{id}/complete [post]
func (h *DeliveryHandler) Complete(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	d, err := h.service.Complete(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDeliveryResponse(d))
}
