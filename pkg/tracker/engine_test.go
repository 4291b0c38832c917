package tracker

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/pkg/wire"
)

var errStreamClosed = errors.New("stream closed")

type fakeStream struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (s *fakeStream) Read() ([]byte, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-s.closed:
		return nil, errStreamClosed
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeSource struct {
	mu           sync.Mutex
	delivery     wire.Delivery
	locations    []wire.Location
	fetchErr     error
	gate         chan struct{}
	stream       *fakeStream
	subscribeErr error
	fetches      int
}

func (f *fakeSource) FetchDelivery(ctx context.Context, id string) (wire.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivery, nil
}

func (f *fakeSource) FetchLocations(ctx context.Context, id string) ([]wire.Location, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		// Ignores ctx on purpose to model a completion that lands after
		// teardown.
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]wire.Location, len(f.locations))
	copy(out, f.locations)
	return out, nil
}

func (f *fakeSource) Subscribe(ctx context.Context, id string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.stream, nil
}

func (f *fakeSource) setLocations(locs []wire.Location, err error) {
	f.mu.Lock()
	f.locations, f.fetchErr = locs, err
	f.mu.Unlock()
}

func appendFrame(t *testing.T, l wire.Location) []byte {
	t.Helper()
	b, err := wire.Encode(wire.Append(l))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func ids(locs []wire.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.ID
	}
	return out
}

func equalIDs(locs []wire.Location, want ...string) bool {
	got := ids(locs)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func newActiveEngine(t *testing.T, src *fakeSource, opts Options) *Engine {
	t.Helper()
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	e := NewEngine(src, "d1", opts, zerolog.Nop())
	e.Start(context.Background())
	t.Cleanup(e.Close)
	eventually(t, func() bool { return e.Snapshot().State == StateActive })
	return e
}

func TestEngine_LoadingReplacesThenActive(t *testing.T) {
	src := &fakeSource{
		delivery:  wire.Delivery{ID: "d1", Status: "IN_TRANSIT"},
		locations: []wire.Location{loc("a", 1, 1), loc("b", 2, 2)},
		stream:    newFakeStream(),
	}
	e := newActiveEngine(t, src, Options{})

	eventually(t, func() bool {
		s := e.Snapshot()
		return s.Delivery != nil && equalIDs(s.Locations, "a", "b")
	})
}

func TestEngine_DuplicatePushKeepsOneEntry(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{stream: stream}
	e := newActiveEngine(t, src, Options{})

	stream.frames <- appendFrame(t, loc("1", 1, 1))
	stream.frames <- appendFrame(t, loc("1", 1, 1))
	stream.frames <- appendFrame(t, loc("2", 2, 2))

	eventually(t, func() bool { return len(e.Snapshot().Locations) >= 2 })
	if got := e.Snapshot().Locations; !equalIDs(got, "1", "2") {
		t.Fatalf("expected [1 2], got %v", ids(got))
	}
}

func TestEngine_FetchAfterAppendsReplacesWholesale(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{stream: stream}
	e := newActiveEngine(t, src, Options{})

	stream.frames <- appendFrame(t, loc("p1", 1, 1))
	stream.frames <- appendFrame(t, loc("p2", 2, 2))
	eventually(t, func() bool { return equalIDs(e.Snapshot().Locations, "p1", "p2") })

	src.setLocations([]wire.Location{loc("x", 3, 3), loc("y", 4, 4)}, nil)
	e.Refresh()

	eventually(t, func() bool { return equalIDs(e.Snapshot().Locations, "x", "y") })
}

func TestEngine_SnapshotFrameReplaces(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{stream: stream}
	e := newActiveEngine(t, src, Options{})

	stream.frames <- appendFrame(t, loc("p1", 1, 1))
	frame, _ := wire.Encode(wire.Snapshot([]wire.Location{loc("s1", 0, 0), loc("s2", 0, 0)}))
	stream.frames <- frame

	eventually(t, func() bool { return equalIDs(e.Snapshot().Locations, "s1", "s2") })
}

func TestEngine_MalformedFramesDropped(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{stream: stream}
	e := newActiveEngine(t, src, Options{})

	stream.frames <- []byte("not json")
	stream.frames <- []byte(`{"type":"append"}`)
	stream.frames <- []byte(`{"type":"teleport","location":{"id":"z"}}`)
	stream.frames <- appendFrame(t, loc("ok", 1, 1))

	eventually(t, func() bool { return len(e.Snapshot().Locations) == 1 })
	if got := e.Snapshot().Locations; got[0].ID != "ok" {
		t.Fatalf("unexpected track %v", ids(got))
	}
}

func TestEngine_FetchFailureKeepsTrack(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{stream: stream, locations: []wire.Location{loc("a", 1, 1)}}
	e := newActiveEngine(t, src, Options{})
	eventually(t, func() bool { return equalIDs(e.Snapshot().Locations, "a") })

	src.setLocations(nil, errors.New("502 bad gateway"))
	e.Refresh()
	eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches >= 2
	})

	// Let the failed result reach the engine goroutine.
	time.Sleep(20 * time.Millisecond)
	if got := e.Snapshot().Locations; !equalIDs(got, "a") {
		t.Fatalf("failed fetch must not clear the track, got %v", ids(got))
	}
}

func TestEngine_InitialFetchFailureStillActivates(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{stream: stream, fetchErr: errors.New("timeout")}
	e := newActiveEngine(t, src, Options{})

	src.setLocations([]wire.Location{loc("late", 1, 1)}, nil)
	e.Refresh()
	eventually(t, func() bool { return equalIDs(e.Snapshot().Locations, "late") })
}

func TestEngine_SubscribeFailureFallsBackToPolling(t *testing.T) {
	src := &fakeSource{subscribeErr: errors.New("handshake refused")}
	e := newActiveEngine(t, src, Options{Interval: 10 * time.Millisecond})

	src.setLocations([]wire.Location{loc("polled", 1, 1)}, nil)
	eventually(t, func() bool { return equalIDs(e.Snapshot().Locations, "polled") })
}

func TestEngine_ProgressDerivedFromLastEntry(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{
		stream:   stream,
		delivery: wire.Delivery{ID: "d1", Status: "IN_TRANSIT", DestinationLat: 0, DestinationLng: 0},
	}
	e := newActiveEngine(t, src, Options{})
	eventually(t, func() bool { return e.Snapshot().Delivery != nil })

	stream.frames <- appendFrame(t, loc("far", 1, 0))
	stream.frames <- appendFrame(t, loc("near", 0.0005, 0))

	eventually(t, func() bool { return len(e.Snapshot().Locations) == 2 })
	if p := e.Snapshot().Progress; p.Status != StatusNear {
		t.Fatalf("status = %q, want %q", p.Status, StatusNear)
	}
}

func TestEngine_NoMutationAfterClose(t *testing.T) {
	gate := make(chan struct{})
	stream := newFakeStream()
	src := &fakeSource{
		gate:      gate,
		stream:    stream,
		locations: []wire.Location{loc("late", 1, 1)},
	}

	var updates atomic.Int32
	e := NewEngine(src, "d1", Options{
		Interval: time.Hour,
		OnUpdate: func(Snapshot) { updates.Add(1) },
	}, zerolog.Nop())
	e.Start(context.Background())

	// Let the delivery fetch land while the locations fetch is still held.
	eventually(t, func() bool { return updates.Load() >= 1 })

	e.Close()
	before := updates.Load()

	close(gate)
	stream.frames <- appendFrame(t, loc("ghost", 0, 0))
	time.Sleep(30 * time.Millisecond)

	if got := updates.Load(); got != before {
		t.Fatalf("OnUpdate called %d times after Close", got-before)
	}
	snap := e.Snapshot()
	if snap.State != StateUnmounted {
		t.Fatalf("state = %v, want unmounted", snap.State)
	}
	if len(snap.Locations) != 0 {
		t.Fatalf("late completion mutated the track: %v", ids(snap.Locations))
	}
}

func TestEngine_CloseStopsPushReader(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{stream: stream}
	e := newActiveEngine(t, src, Options{})

	// The reader is running once a pushed frame is applied.
	stream.frames <- appendFrame(t, loc("1", 0, 0))
	eventually(t, func() bool { return len(e.Snapshot().Locations) == 1 })

	e.Close()

	select {
	case <-stream.closed:
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on unmount")
	}
}

func TestEngine_CloseBeforeStart(t *testing.T) {
	e := NewEngine(&fakeSource{}, "d1", Options{}, zerolog.Nop())
	e.Close()
	e.Start(context.Background())

	if e.Snapshot().State != StateUnmounted {
		t.Fatal("engine closed before start must stay unmounted")
	}
}

func TestEngine_CloseFromOnUpdate(t *testing.T) {
	src := &fakeSource{stream: newFakeStream()}

	var e *Engine
	var calls atomic.Int32
	e = NewEngine(src, "d1", Options{
		Interval: time.Hour,
		OnUpdate: func(Snapshot) {
			calls.Add(1)
			e.Close()
		},
	}, zerolog.Nop())
	e.Start(context.Background())

	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine goroutine did not exit after Close from OnUpdate")
	}
	if calls.Load() != 1 {
		t.Fatalf("OnUpdate called %d times, want 1", calls.Load())
	}
	if e.Snapshot().State != StateUnmounted {
		t.Fatal("expected unmounted")
	}
}

func TestEngine_PartialThresholdsKeepDefaults(t *testing.T) {
	stream := newFakeStream()
	src := &fakeSource{
		stream:   stream,
		delivery: wire.Delivery{ID: "d1", Status: "IN_TRANSIT"},
	}
	e := newActiveEngine(t, src, Options{Thresholds: Thresholds{NearKm: 0.05}})
	eventually(t, func() bool { return e.Snapshot().Delivery != nil })

	// 0.01 degrees is about 1.1 km with the default scale.
	stream.frames <- appendFrame(t, loc("far", 0.01, 0))

	eventually(t, func() bool { return len(e.Snapshot().Locations) == 1 })
	p := e.Snapshot().Progress
	if p.Status != StatusInTransit {
		t.Fatalf("status = %q, want %q", p.Status, StatusInTransit)
	}
	if p.DistanceKm < 1 {
		t.Fatalf("distance = %v, the default km per degree was not applied", p.DistanceKm)
	}
}
