package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/api/metrics"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

const (
	defaultWorkers        = 4
	defaultChannelBuffer  = 256
	defaultPublishTimeout = 5 * time.Second
)

var ErrQueueFull = errors.New("event bus queue full")

// Publisher hands location events to a bus sink from a fixed set of workers.
// Events are sharded by delivery id so each delivery's events reach the sink
// in ingestion order. Publish never blocks: when the shard is full the event
// is dropped.
type Publisher struct {
	workers []chan domain.LocationEvent
	sink    ports.EventPublisher
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// Options tunes a Publisher. Zero values use the defaults.
type Options struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
}

// NewPublisher creates a Publisher over sink.
func NewPublisher(sink ports.EventPublisher, opts Options, log zerolog.Logger) *Publisher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultChannelBuffer
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	p := &Publisher{
		workers: make([]chan domain.LocationEvent, opts.Workers),
		sink:    sink,
		timeout: opts.PublishTimeout,
		log:     log,
	}
	for i := range p.workers {
		p.workers[i] = make(chan domain.LocationEvent, opts.Buffer)
	}
	return p
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	for i, ch := range p.workers {
		p.wg.Add(1)
		go p.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

// Publish enqueues event on the worker responsible for its delivery.
func (p *Publisher) Publish(_ context.Context, event domain.LocationEvent) error {
	idx := p.shardIndex(event.DeliveryID)
	select {
	case p.workers[idx] <- event:
		metrics.EventBusQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(p.workers[idx])))
		return nil
	default:
		metrics.EventBusPublishTotal.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// shardIndex maps a delivery id deterministically to a worker index.
func (p *Publisher) shardIndex(deliveryID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deliveryID))
	return int(h.Sum32() % uint32(len(p.workers)))
}

func (p *Publisher) runWorker(ctx context.Context, id int, ch <-chan domain.LocationEvent) {
	defer p.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			metrics.EventBusQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

			pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
			err := p.sink.Publish(pubCtx, event)
			cancel()

			if err != nil {
				metrics.EventBusPublishTotal.WithLabelValues("failed").Inc()
				p.log.Warn().Err(err).
					Str("delivery_id", event.DeliveryID).
					Int("worker_id", id).
					Msg("event bus publish failed")
				continue
			}
			metrics.EventBusPublishTotal.WithLabelValues("ok").Inc()
		}
	}
}
