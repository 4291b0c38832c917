package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.EventBus.Enabled {
		t.Error("event bus should be disabled by default")
	}
	if cfg.EventBus.Topic != "location.updated" {
		t.Errorf("Topic = %q, want location.updated", cfg.EventBus.Topic)
	}
	if cfg.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", cfg.WebSocket.PingInterval)
	}
}

func TestLoadWith_MissingSecret(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestLoadWith_UnknownDriver(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":        "s3cret",
		"EVENT_BUS_ENABLED": "true",
		"EVENT_BUS_DRIVER":  "kafka",
	}))
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":        "s3cret",
		"EVENT_BUS_ENABLED": "true",
		"EVENT_BUS_DRIVER":  "rabbitmq",
		"EVENT_BUS_WORKERS": "2",
		"WS_WRITE_TIMEOUT":  "3s",
		"ENV":               "production",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EventBus.Driver != BusDriverRabbitMQ || cfg.EventBus.Workers != 2 {
		t.Errorf("unexpected bus config: %+v", cfg.EventBus)
	}
	if cfg.WebSocket.WriteTimeout != 3*time.Second {
		t.Errorf("WriteTimeout = %v, want 3s", cfg.WebSocket.WriteTimeout)
	}
	if !cfg.IsProduction() {
		t.Error("expected production")
	}
}
