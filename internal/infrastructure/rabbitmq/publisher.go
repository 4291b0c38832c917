// Package rabbitmq publishes location events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

const dialTimeout = 10 * time.Second

// Config captures the settings for the publisher connection.
type Config struct {
	URL      string
	Exchange string
	// Topic is the routing key prefix; events go to "<topic>.<delivery_id>".
	Topic string
}

// Publisher owns one AMQP connection and channel. A broken connection is
// redialled on the next Publish; there is no background reconnect loop.
type Publisher struct {
	cfg Config
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a publisher without dialling. The connection is opened
// by Open or, failing that, by the first Publish.
func NewPublisher(cfg Config, log zerolog.Logger) *Publisher {
	return &Publisher{cfg: cfg, log: log}
}

// Open dials RabbitMQ and declares the topic exchange. A failure leaves the
// publisher usable; the next Publish dials again.
func (p *Publisher) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange %s: %w", p.cfg.Exchange, err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

// Publish sends the event as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, event domain.LocationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.log.Warn().Msg("rabbitmq channel closed, redialling")
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	routingKey := p.cfg.Topic + "." + event.DeliveryID
	if err := p.ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", routingKey, err)
	}
	return nil
}

// Ping reports whether the connection is usable.
func (p *Publisher) Ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
