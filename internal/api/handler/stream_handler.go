package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/infrastructure/realtime"
)

const (
	defaultPingInterval = 30 * time.Second
	streamReadLimit     = 4 << 10
)

// StreamHandler upgrades viewers to a per-delivery push channel and keeps
// their handle in the registry for the lifetime of the socket.
type StreamHandler struct {
	deliveries   ports.DeliveryService
	registry     *realtime.Registry
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	log          zerolog.Logger
}

func NewStreamHandler(
	deliveries ports.DeliveryService,
	registry *realtime.Registry,
	pingInterval, writeTimeout time.Duration,
	log zerolog.Logger,
) *StreamHandler {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &StreamHandler{
		deliveries: deliveries,
		registry:   registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Viewers are authenticated by token, not by origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		log:          log.With().Str("component", "stream").Logger(),
	}
}

// Subscribe opens the push channel of one delivery.
//
// @Summary      Subscribe to live locations
// @Description  Upgrades to WebSocket. Each new location arrives as {"type":"append","location":{...}}.
// @Tags         locations
// @Security     BearerAuth
// @Param        delivery_id  path   string  true   "Delivery ID"
// @Param        token        query  string  false  "JWT when headers cannot be set"
// @Success      101
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/locations/ws/{delivery_id} [get]
func (h *StreamHandler) Subscribe(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	deliveryID := c.Param("delivery_id")
	if _, err := h.deliveries.Get(c.Request().Context(), deliveryID, caller); err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Warn().Err(err).Str("delivery_id", deliveryID).Msg("websocket upgrade failed")
		return nil
	}

	conn := realtime.NewWSConn(ws, h.writeTimeout)
	h.registry.Subscribe(deliveryID, conn)
	defer func() {
		if h.registry.Unsubscribe(deliveryID, conn) {
			_ = conn.Close()
		}
	}()

	h.log.Info().
		Str("delivery_id", deliveryID).
		Str("conn_id", conn.ID()).
		Str("user_id", caller.ID).
		Msg("viewer subscribed")

	readWindow := 2 * h.pingInterval
	ws.SetReadLimit(streamReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readWindow))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWindow))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(deliveryID, conn, done)

	// Nothing is expected from the viewer; reading only drives control
	// frames and detects the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Str("conn_id", conn.ID()).Msg("viewer read ended")
			}
			break
		}
	}

	h.log.Info().Str("delivery_id", deliveryID).Str("conn_id", conn.ID()).Msg("viewer disconnected")
	return nil
}

func (h *StreamHandler) pingLoop(deliveryID string, conn *realtime.WSConn, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				h.log.Warn().Err(err).Str("delivery_id", deliveryID).Str("conn_id", conn.ID()).Msg("ping failed, closing")
				// Closing unblocks the reader, which unsubscribes.
				_ = conn.Close()
				return
			}
		}
	}
}
