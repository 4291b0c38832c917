package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/api/middleware"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/infrastructure/realtime"
	"github.com/99minutos/courier-tracking/pkg/wire"
)

func newStreamServer(t *testing.T, svc *stubDeliveryService, reg *realtime.Registry) string {
	t.Helper()

	e := echo.New()
	asCustomer := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxUserID, customerC1.ID)
			c.Set(middleware.CtxRole, customerC1.Role)
			return next(c)
		}
	}
	h := NewStreamHandler(svc, reg, time.Minute, time.Second, zerolog.Nop())
	e.GET("/v1/locations/ws/:delivery_id", h.Subscribe, asCustomer)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStreamHandler_ReceivesBroadcastAndUnsubscribesOnClose(t *testing.T) {
	reg := realtime.NewRegistry(zerolog.Nop())
	svc := &stubDeliveryService{
		getFn: func(ctx context.Context, id string, caller domain.Caller) (*domain.Delivery, error) {
			return sampleDelivery(), nil
		},
	}
	base := newStreamServer(t, svc, reg)

	ws, _, err := websocket.DefaultDialer.Dial(base+"/v1/locations/ws/d1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return reg.Count("d1") == 1 })

	loc := &domain.Location{ID: "loc-1", DeliveryID: "d1", Latitude: -23.55, Longitude: -46.63, Timestamp: time.Now().UTC()}
	if sent := realtime.NewDispatcher(reg, zerolog.Nop()).Broadcast("d1", loc); sent != 1 {
		t.Fatalf("expected 1 send, got %d", sent)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, err := wire.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Type != wire.FrameAppend || frame.Location.ID != "loc-1" {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()

	waitFor(t, func() bool { return !reg.Has("d1") })
}

func TestStreamHandler_RejectsInvisibleDelivery(t *testing.T) {
	reg := realtime.NewRegistry(zerolog.Nop())
	svc := &stubDeliveryService{
		getFn: func(ctx context.Context, id string, caller domain.Caller) (*domain.Delivery, error) {
			return nil, domain.ErrForbidden
		},
	}
	base := newStreamServer(t, svc, reg)

	ws, resp, err := websocket.DefaultDialer.Dial(base+"/v1/locations/ws/d1", nil)
	if err == nil {
		_ = ws.Close()
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode == 101 {
		t.Fatalf("expected an HTTP error response, got %+v", resp)
	}
	if reg.Deliveries() != 0 {
		t.Fatal("no subscriber may be registered")
	}
}
