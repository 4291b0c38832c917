package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	err    error
	events []domain.LocationEvent
	done   chan struct{}
	want   int
}

func newRecordingSink(want int) *recordingSink {
	return &recordingSink{done: make(chan struct{}), want: want}
}

func (s *recordingSink) Publish(_ context.Context, e domain.LocationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if len(s.events) == s.want {
		close(s.done)
	}
	return s.err
}

func (s *recordingSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink")
	}
}

func TestPublisher_PreservesPerDeliveryOrder(t *testing.T) {
	sink := newRecordingSink(30)
	p := NewPublisher(sink, Options{Workers: 3}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	for i := 0; i < 10; i++ {
		for _, d := range []string{"d1", "d2", "d3"} {
			if err := p.Publish(ctx, domain.LocationEvent{DeliveryID: d, Latitude: float64(i)}); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
	}
	sink.wait(t)

	last := map[string]float64{}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, e := range sink.events {
		if prev, ok := last[e.DeliveryID]; ok && e.Latitude <= prev {
			t.Fatalf("out of order for %s: %v after %v", e.DeliveryID, e.Latitude, prev)
		}
		last[e.DeliveryID] = e.Latitude
	}
}

func TestPublisher_SinkErrorsAreAbsorbed(t *testing.T) {
	sink := newRecordingSink(2)
	sink.err = errors.New("broker unreachable")
	p := NewPublisher(sink, Options{Workers: 1}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	for i := 0; i < 2; i++ {
		if err := p.Publish(ctx, domain.LocationEvent{DeliveryID: "d1"}); err != nil {
			t.Fatalf("publish must not surface sink errors: %v", err)
		}
	}
	sink.wait(t)

	cancel()
	p.Wait()
}

func TestPublisher_FullQueueDrops(t *testing.T) {
	// Workers are never started, so the single slot fills up.
	p := NewPublisher(newRecordingSink(0), Options{Workers: 1, Buffer: 1}, zerolog.Nop())

	if err := p.Publish(context.Background(), domain.LocationEvent{DeliveryID: "d1"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	err := p.Publish(context.Background(), domain.LocationEvent{DeliveryID: "d1"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPublisher_ShardIndexIsStable(t *testing.T) {
	p := NewPublisher(newRecordingSink(0), Options{Workers: 8}, zerolog.Nop())
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("delivery-%d", i)
		a, b := p.shardIndex(id), p.shardIndex(id)
		if a != b || a < 0 || a >= 8 {
			t.Fatalf("unstable or out of range shard for %s: %d %d", id, a, b)
		}
	}
}
