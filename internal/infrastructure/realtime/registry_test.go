package realtime

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeConn records every payload it is sent; failing makes Send return an error.
type fakeConn struct {
	id      string
	mu      sync.Mutex
	failing bool
	sent    [][]byte
	closed  int
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	a := newFakeConn("a")
	b := newFakeConn("b")

	r.Subscribe("d1", a)
	r.Subscribe("d1", a)
	r.Subscribe("d1", b)

	if got := r.Count("d1"); got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}

	r.Unsubscribe("d1", a)
	if got := r.Count("d1"); got != 1 {
		t.Fatalf("expected 1 subscriber after one unsubscribe, got %d", got)
	}
}

func TestRegistry_LastUnsubscribeRemovesEntry(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	a := newFakeConn("a")
	b := newFakeConn("b")

	r.Subscribe("d1", a)
	r.Subscribe("d1", b)
	r.Unsubscribe("d1", a)
	if !r.Has("d1") {
		t.Fatal("entry removed while a subscriber remains")
	}

	r.Unsubscribe("d1", b)
	if r.Has("d1") {
		t.Fatal("expected delivery entry removed after the last unsubscribe")
	}
	if r.Deliveries() != 0 {
		t.Fatalf("expected empty registry, got %d deliveries", r.Deliveries())
	}
}

func TestRegistry_UnsubscribeReportsRemoval(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	a := newFakeConn("a")

	if r.Unsubscribe("d1", a) {
		t.Fatal("unknown delivery should report false")
	}
	r.Subscribe("d1", a)
	if !r.Unsubscribe("d1", a) {
		t.Fatal("first removal should report true")
	}
	if r.Unsubscribe("d1", a) {
		t.Fatal("second removal should report false")
	}
}

func TestRegistry_SubscribersIsSnapshot(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	a := newFakeConn("a")
	b := newFakeConn("b")
	r.Subscribe("d1", a)
	r.Subscribe("d1", b)

	snap := r.Subscribers("d1")
	for _, c := range snap {
		r.Unsubscribe("d1", c)
	}

	if len(snap) != 2 {
		t.Fatalf("snapshot changed under mutation: %d", len(snap))
	}
	if len(r.Subscribers("unknown")) != 0 {
		t.Fatal("expected empty snapshot for unknown delivery")
	}
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("d%d", i%5)
			c := newFakeConn(fmt.Sprintf("c%d", i))
			r.Subscribe(id, c)
			_ = r.Subscribers(id)
			r.Unsubscribe(id, c)
		}(i)
	}
	wg.Wait()

	if r.Deliveries() != 0 {
		t.Fatalf("expected no leftover entries, got %d", r.Deliveries())
	}
}
