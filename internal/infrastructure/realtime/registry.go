// Package realtime owns the live subscriber connections of each delivery and
// fans persisted location records out to them.
//
// The registry is process-local. Running more than one API instance needs
// either sticky routing of every subscriber of a delivery to one instance or
// a relay that replays the event bus into each instance's Dispatcher.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/api/metrics"
)

// Conn is an opaque subscriber handle. Implementations must be comparable
// (pointer types) since the registry keys sets by handle.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Registry maps a delivery id to the set of its live subscriber connections.
// All mutations happen under one lock; no I/O is done while holding it.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[Conn]struct{}
	log      zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]map[Conn]struct{}),
		log:      log,
	}
}

// Subscribe adds conn to the delivery's set, creating the set if absent.
// Subscribing the same conn twice is a no-op.
func (r *Registry) Subscribe(deliveryID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[deliveryID]
	if !ok {
		set = make(map[Conn]struct{})
		r.channels[deliveryID] = set
		metrics.DeliveriesWatched.Inc()
	}
	if _, dup := set[conn]; dup {
		return
	}
	set[conn] = struct{}{}
	metrics.SubscribersActive.Inc()

	r.log.Debug().Str("delivery_id", deliveryID).Str("conn_id", conn.ID()).Int("subscribers", len(set)).Msg("subscriber added")
}

// Unsubscribe removes conn and drops the delivery entry once its set is
// empty. It reports whether conn was registered, so concurrent removals by
// the close path and a failed broadcast release the handle exactly once.
func (r *Registry) Unsubscribe(deliveryID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[deliveryID]
	if !ok {
		return false
	}
	if _, ok := set[conn]; !ok {
		return false
	}
	delete(set, conn)
	metrics.SubscribersActive.Dec()

	if len(set) == 0 {
		delete(r.channels, deliveryID)
		metrics.DeliveriesWatched.Dec()
	}

	r.log.Debug().Str("delivery_id", deliveryID).Str("conn_id", conn.ID()).Int("subscribers", len(set)).Msg("subscriber removed")
	return true
}

// Subscribers returns a snapshot of the delivery's connections. The slice is
// owned by the caller and unaffected by later mutations.
func (r *Registry) Subscribers(deliveryID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.channels[deliveryID]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live subscribers of a delivery.
func (r *Registry) Count(deliveryID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[deliveryID])
}

// Has reports whether the delivery has a registry entry at all.
func (r *Registry) Has(deliveryID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[deliveryID]
	return ok
}

// Deliveries returns the number of deliveries with live subscribers.
func (r *Registry) Deliveries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
