package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// Bus publishes location events to a Redis Pub/Sub channel named after the
// topic. Redis Pub/Sub is at-most-once: events published while no consumer
// is subscribed are lost.
type Bus struct {
	client *redis.Client
	topic  string
}

// NewBus creates a Bus publishing on topic.
func NewBus(client *redis.Client, topic string) *Bus {
	return &Bus{client: client, topic: topic}
}

// Publish sends the event as JSON.
func (b *Bus) Publish(ctx context.Context, event domain.LocationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis bus: marshal: %w", err)
	}
	if err := b.client.Publish(ctx, b.topic, body).Err(); err != nil {
		return fmt.Errorf("redis bus: publish %s: %w", b.topic, err)
	}
	return nil
}
