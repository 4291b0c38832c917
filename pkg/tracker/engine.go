package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/pkg/wire"
)

// DefaultInterval is the full re-fetch period used when none is configured.
const DefaultInterval = 10 * time.Second

// State is the lifecycle of an Engine.
type State int

const (
	StateLoading State = iota
	StateActive
	StateUnmounted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateUnmounted:
		return "unmounted"
	default:
		return "unknown"
	}
}

// Stream is an open push subscription. Close unblocks a pending Read.
type Stream interface {
	Read() ([]byte, error)
	Close() error
}

// Source is everything the engine needs from the tracking API.
type Source interface {
	FetchDelivery(ctx context.Context, deliveryID string) (wire.Delivery, error)
	FetchLocations(ctx context.Context, deliveryID string) ([]wire.Location, error)
	Subscribe(ctx context.Context, deliveryID string) (Stream, error)
}

// Options tunes an Engine. Zero values use the defaults.
type Options struct {
	Interval   time.Duration
	Thresholds Thresholds
	// OnUpdate runs on the engine goroutine after every state change. It is
	// never started once Close has returned. It may call Close, which then
	// returns without waiting for the engine goroutine.
	OnUpdate func(Snapshot)
}

// Snapshot is an immutable copy of the engine state.
type Snapshot struct {
	State     State
	Delivery  *wire.Delivery
	Locations []wire.Location
	Progress  Progress
}

type eventKind int

const (
	evDelivery eventKind = iota
	evLocations
	evFrame
)

type event struct {
	kind      eventKind
	initial   bool
	delivery  wire.Delivery
	locations []wire.Location
	raw       []byte
	err       error
}

// Engine keeps the track of one delivery current from two paths: a push
// subscription that appends new records and a periodic full fetch that
// replaces the track wholesale. The fetch is the correctness backstop for
// pushes that never arrive.
//
// The initial fetch, the timer and the push reader complete independently;
// their results funnel through one goroutine, which is the only writer of
// the track.
type Engine struct {
	src        Source
	deliveryID string
	interval   time.Duration
	thresholds Thresholds
	onUpdate   func(Snapshot)
	log        zerolog.Logger

	events  chan event
	refresh chan struct{}
	done    chan struct{}

	lifecycle sync.Mutex
	started   bool
	closed    bool
	cancel    context.CancelFunc

	// Set while OnUpdate runs so a Close from inside it does not wait on
	// its own goroutine.
	inCallback atomic.Bool

	mu   sync.RWMutex
	snap Snapshot

	// Owned by run.
	state    State
	track    *Track
	delivery *wire.Delivery
	fetching bool
}

// NewEngine creates an engine for deliveryID. Nothing happens until Start.
func NewEngine(src Source, deliveryID string, opts Options, log zerolog.Logger) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	log = log.With().Str("delivery_id", deliveryID).Logger()

	opts.Thresholds = opts.Thresholds.WithDefaults()
	if err := opts.Thresholds.Validate(); err != nil {
		log.Warn().Err(err).Msg("invalid thresholds, using defaults")
		opts.Thresholds = DefaultThresholds()
	}
	return &Engine{
		src:        src,
		deliveryID: deliveryID,
		interval:   opts.Interval,
		thresholds: opts.Thresholds,
		onUpdate:   opts.OnUpdate,
		log:        log,
		events:     make(chan event),
		refresh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		track:      NewTrack(nil),
		snap:       Snapshot{State: StateLoading, Progress: Progress{Status: StatusWaiting}},
	}
}

// Start enters Loading and launches the engine goroutine. Calling Start
// twice, or after Close, does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)
	go e.run(ctx)
}

// Close unmounts the engine: the subscription and the timer stop, pending
// fetches are abandoned, and no mutation happens after Close returns.
func (e *Engine) Close() {
	e.lifecycle.Lock()
	if e.closed {
		e.lifecycle.Unlock()
		return
	}
	e.closed = true
	started := e.started
	if started {
		e.cancel()
	}
	e.lifecycle.Unlock()

	if started && !e.inCallback.Load() {
		<-e.done
	}

	e.mu.Lock()
	e.snap.State = StateUnmounted
	e.mu.Unlock()
}

// Done is closed when the engine goroutine has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Refresh asks for an immediate full fetch. It never blocks.
func (e *Engine) Refresh() {
	select {
	case e.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	e.state = StateLoading
	e.fetching = true
	go e.fetchDelivery(ctx)
	go e.fetchLocations(ctx, true)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-e.events:
			// A completion may race the cancellation; the teardown wins.
			if ctx.Err() != nil {
				return
			}
			changed := e.apply(ev)

			if ev.kind == evLocations && ev.initial && e.state == StateLoading {
				e.state = StateActive
				ticker = time.NewTicker(e.interval)
				tick = ticker.C
				go e.readPush(ctx)
				changed = true
			}
			if changed {
				e.publish()
			}

		case <-tick:
			e.startFetch(ctx)

		case <-e.refresh:
			if e.state == StateActive {
				e.startFetch(ctx)
			}
		}
	}
}

// apply mutates engine state for one completed operation and reports
// whether anything visible changed.
func (e *Engine) apply(ev event) bool {
	switch ev.kind {
	case evDelivery:
		if ev.err != nil {
			e.log.Warn().Err(ev.err).Msg("fetch delivery failed")
			return false
		}
		d := ev.delivery
		e.delivery = &d
		return true

	case evLocations:
		e.fetching = false
		if ev.err != nil {
			// Stale but valid beats blank.
			e.log.Warn().Err(ev.err).Msg("fetch locations failed, keeping current track")
			return false
		}
		e.track.Replace(ev.locations)
		return true

	case evFrame:
		frame, err := wire.Decode(ev.raw)
		if err != nil {
			e.log.Warn().Err(err).Msg("dropping push frame")
			return false
		}
		switch frame.Type {
		case wire.FrameAppend:
			return e.track.Append(*frame.Location)
		case wire.FrameSnapshot:
			e.track.Replace(frame.Locations)
			return true
		}
	}
	return false
}

func (e *Engine) publish() {
	snap := Snapshot{
		State:     e.state,
		Locations: e.track.Locations(),
	}
	if e.delivery != nil {
		d := *e.delivery
		snap.Delivery = &d
		var last *wire.Location
		if l, ok := e.track.Last(); ok {
			last = &l
		}
		snap.Progress = ComputeProgress(d, last, e.thresholds)
	} else {
		snap.Progress = Progress{Status: StatusWaiting}
	}

	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()

	if e.onUpdate != nil {
		e.inCallback.Store(true)
		e.onUpdate(snap)
		e.inCallback.Store(false)
	}
}

// startFetch issues a full re-fetch unless one is already in flight.
func (e *Engine) startFetch(ctx context.Context) {
	if e.fetching {
		return
	}
	e.fetching = true
	go e.fetchLocations(ctx, false)
}

func (e *Engine) fetchDelivery(ctx context.Context) {
	d, err := e.src.FetchDelivery(ctx, e.deliveryID)
	e.send(ctx, event{kind: evDelivery, delivery: d, err: err})
}

func (e *Engine) fetchLocations(ctx context.Context, initial bool) {
	locs, err := e.src.FetchLocations(ctx, e.deliveryID)
	e.send(ctx, event{kind: evLocations, initial: initial, locations: locs, err: err})
}

// readPush forwards raw frames from the subscription until it ends. A
// failed or dropped subscription is not retried; the timer keeps the track
// current.
func (e *Engine) readPush(ctx context.Context) {
	stream, err := e.src.Subscribe(ctx, e.deliveryID)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warn().Err(err).Msg("subscribe failed, relying on polling")
		}
		return
	}

	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer func() {
		if stop() {
			_ = stream.Close()
		}
	}()

	for {
		raw, err := stream.Read()
		if err != nil {
			if ctx.Err() == nil {
				e.log.Warn().Err(err).Msg("push channel closed, relying on polling")
			}
			return
		}
		e.send(ctx, event{kind: evFrame, raw: raw})
	}
}

func (e *Engine) send(ctx context.Context, ev event) {
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}
