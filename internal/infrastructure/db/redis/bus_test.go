package redis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// Nothing listens on port 1.
const unreachableAddr = "127.0.0.1:1"

func TestConnect_UnreachableReturnsClient(t *testing.T) {
	client := Connect(context.Background(), Config{Addr: unreachableAddr, PingTimeout: 500 * time.Millisecond}, zerolog.Nop())
	if client == nil {
		t.Fatal("expected a client even when redis is down")
	}
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err == nil {
		t.Fatal("expected ping to fail against an unreachable server")
	}
}

func TestBus_PublishUnreachableReturnsError(t *testing.T) {
	client := Connect(context.Background(), Config{Addr: unreachableAddr, PingTimeout: 500 * time.Millisecond}, zerolog.Nop())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := NewBus(client, "location.updated").Publish(ctx, domain.LocationEvent{DeliveryID: "d1"})
	if err == nil {
		t.Fatal("expected publish to fail against an unreachable server")
	}
}
