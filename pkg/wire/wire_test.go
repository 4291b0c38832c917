package wire

import (
	"errors"
	"testing"
	"time"
)

func TestDecode_Append(t *testing.T) {
	ts := time.Date(2025, 7, 7, 2, 0, 0, 0, time.UTC)
	raw, err := Encode(Append(Location{ID: "1", DeliveryID: "d1", Latitude: -23.55, Longitude: -46.63, Timestamp: ts}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Type != FrameAppend || f.Location == nil {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if f.Location.ID != "1" || !f.Location.Timestamp.Equal(ts) {
		t.Fatalf("unexpected location: %+v", f.Location)
	}
}

func TestDecode_EmptySnapshot(t *testing.T) {
	raw, _ := Encode(Snapshot(nil))

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Type != FrameSnapshot || f.Locations == nil || len(f.Locations) != 0 {
		t.Fatalf("expected empty, non-nil snapshot, got %+v", f)
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"type":`,
		"bare record":       `{"id":"1","latitude":1,"longitude":2}`,
		"bare array":        `[{"id":"1"}]`,
		"append without id": `{"type":"append","location":{"latitude":1}}`,
		"append no body":    `{"type":"append"}`,
		"snapshot entry":    `{"type":"snapshot","locations":[{"id":"1"},{"latitude":3}]}`,
		"unknown type":      `{"type":"delete","location":{"id":"1"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}
