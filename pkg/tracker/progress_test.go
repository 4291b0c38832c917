package tracker

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/99minutos/courier-tracking/pkg/wire"
)

func TestComputeProgress_Bands(t *testing.T) {
	th := DefaultThresholds()
	dest := wire.Delivery{DestinationLat: -23.5410, DestinationLng: -46.6240, Status: "IN_TRANSIT"}

	tests := []struct {
		name       string
		dLat       float64
		wantStatus string
	}{
		{"near", 0.0005, StatusNear},              // ~0.06 km
		{"approaching", 0.003, StatusApproaching}, // ~0.33 km
		{"in transit", 0.01, StatusInTransit},     // ~1.11 km
		{"on the way", 0.05, StatusOnTheWay},      // ~5.55 km
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := wire.Location{Latitude: dest.DestinationLat + tt.dLat, Longitude: dest.DestinationLng}
			p := ComputeProgress(dest, &last, th)

			if p.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", p.Status, tt.wantStatus)
			}
			wantKm := tt.dLat * 111
			if math.Abs(p.DistanceKm-wantKm) > 1e-9 {
				t.Fatalf("distance = %v, want %v", p.DistanceKm, wantKm)
			}
		})
	}
}

func TestComputeProgress_Percent(t *testing.T) {
	th := DefaultThresholds()
	dest := wire.Delivery{Status: "IN_TRANSIT"}

	// 2.5 km away with a 5 km span is half way.
	half := wire.Location{Latitude: 2.5 / 111}
	if p := ComputeProgress(dest, &half, th); math.Abs(p.Percent-50) > 1e-9 {
		t.Fatalf("percent = %v, want 50", p.Percent)
	}

	// Beyond the span clamps to 0.
	far := wire.Location{Latitude: 1}
	if p := ComputeProgress(dest, &far, th); p.Percent != 0 {
		t.Fatalf("percent = %v, want 0", p.Percent)
	}

	// On the destination is 100.
	here := wire.Location{}
	if p := ComputeProgress(dest, &here, th); p.Percent != 100 {
		t.Fatalf("percent = %v, want 100", p.Percent)
	}
}

func TestComputeProgress_Delivered(t *testing.T) {
	last := wire.Location{Latitude: 10, Longitude: 10}
	for _, status := range []string{"DELIVERED", "delivered"} {
		p := ComputeProgress(wire.Delivery{Status: status}, &last, DefaultThresholds())
		if !p.Delivered || p.Percent != 100 || p.DistanceKm != 0 || p.Status != StatusDelivered {
			t.Fatalf("unexpected progress for %s: %+v", status, p)
		}
	}
}

func TestComputeProgress_NoPosition(t *testing.T) {
	p := ComputeProgress(wire.Delivery{Status: "ASSIGNED"}, nil, DefaultThresholds())
	if p.HasPosition || p.Status != StatusWaiting {
		t.Fatalf("unexpected progress: %+v", p)
	}
}

func TestComputeProgress_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.NearKm = 1
	th.ApproachingKm = 2
	th.InTransitKm = 3

	last := wire.Location{Latitude: 0.5 / 111}
	if p := ComputeProgress(wire.Delivery{}, &last, th); p.Status != StatusNear {
		t.Fatalf("status = %q, want %q", p.Status, StatusNear)
	}
}

func TestLoadThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	if err := os.WriteFile(path, []byte("near_km: 0.2\nprogress_span_km: 10\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	th, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.NearKm != 0.2 || th.ProgressSpanKm != 10 {
		t.Fatalf("file values not applied: %+v", th)
	}
	if th.ApproachingKm != 0.5 || th.KmPerDegree != 111 {
		t.Fatalf("defaults not kept for absent keys: %+v", th)
	}
}

func TestLoadThresholds_Invalid(t *testing.T) {
	dir := t.TempDir()

	unordered := filepath.Join(dir, "unordered.yaml")
	_ = os.WriteFile(unordered, []byte("near_km: 3\n"), 0o600)
	if _, err := LoadThresholds(unordered); err == nil {
		t.Fatal("expected error for unordered bands")
	}

	garbage := filepath.Join(dir, "garbage.yaml")
	_ = os.WriteFile(garbage, []byte("near_km: [oops"), 0o600)
	if _, err := LoadThresholds(garbage); err == nil {
		t.Fatal("expected parse error")
	}

	if _, err := LoadThresholds(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestThresholds_WithDefaults(t *testing.T) {
	got := Thresholds{NearKm: 0.05}.WithDefaults()
	want := DefaultThresholds()
	want.NearKm = 0.05
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("merged thresholds should validate: %v", err)
	}
}
