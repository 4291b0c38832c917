package tracker

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/99minutos/courier-tracking/pkg/wire"
)

// Thresholds are the presentation heuristics behind the status text and the
// progress bar. They carry no domain meaning beyond "closer is more
// complete".
type Thresholds struct {
	NearKm         float64 `yaml:"near_km"`
	ApproachingKm  float64 `yaml:"approaching_km"`
	InTransitKm    float64 `yaml:"in_transit_km"`
	ProgressSpanKm float64 `yaml:"progress_span_km"`
	KmPerDegree    float64 `yaml:"km_per_degree"`
}

// DefaultThresholds returns the stock bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NearKm:         0.1,
		ApproachingKm:  0.5,
		InTransitKm:    2,
		ProgressSpanKm: 5,
		KmPerDegree:    111,
	}
}

// WithDefaults fills every non-positive field from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.NearKm, d.NearKm)
	fill(&t.ApproachingKm, d.ApproachingKm)
	fill(&t.InTransitKm, d.InTransitKm)
	fill(&t.ProgressSpanKm, d.ProgressSpanKm)
	fill(&t.KmPerDegree, d.KmPerDegree)
	return t
}

// Validate checks that every value is positive and the bands are ordered.
func (t Thresholds) Validate() error {
	if t.NearKm <= 0 || t.ApproachingKm <= 0 || t.InTransitKm <= 0 || t.ProgressSpanKm <= 0 || t.KmPerDegree <= 0 {
		return fmt.Errorf("thresholds: all values must be positive")
	}
	if !(t.NearKm < t.ApproachingKm && t.ApproachingKm < t.InTransitKm) {
		return fmt.Errorf("thresholds: want near_km < approaching_km < in_transit_km")
	}
	return nil
}

// LoadThresholds reads a YAML file. Keys absent from the file keep their
// default value.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	raw, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("thresholds: %w", err)
	}
	if err := yaml.Unmarshal(raw, &th); err != nil {
		return DefaultThresholds(), fmt.Errorf("thresholds: parse %s: %w", path, err)
	}
	if err := th.Validate(); err != nil {
		return DefaultThresholds(), err
	}
	return th, nil
}

const (
	StatusWaiting     = "Waiting for the courier to start"
	StatusDelivered   = "Delivered"
	StatusNear        = "Near destination"
	StatusApproaching = "Approaching"
	StatusInTransit   = "In transit"
	StatusOnTheWay    = "On the way"
)

// Progress is derived display state. It is never stored in the track.
type Progress struct {
	HasPosition bool
	Delivered   bool
	DistanceKm  float64
	Status      string
	Percent     float64
	LastUpdate  time.Time
}

// ComputeProgress derives the distance to destination, the status text and
// the progress percentage from the latest track entry. last is nil when the
// track is empty.
func ComputeProgress(d wire.Delivery, last *wire.Location, th Thresholds) Progress {
	if last == nil {
		return Progress{Status: StatusWaiting}
	}

	p := Progress{HasPosition: true, LastUpdate: last.Timestamp}
	if strings.EqualFold(d.Status, "DELIVERED") {
		p.Delivered = true
		p.Status = StatusDelivered
		p.Percent = 100
		return p
	}

	dLat := last.Latitude - d.DestinationLat
	dLng := last.Longitude - d.DestinationLng
	p.DistanceKm = math.Sqrt(dLat*dLat+dLng*dLng) * th.KmPerDegree

	switch {
	case p.DistanceKm < th.NearKm:
		p.Status = StatusNear
	case p.DistanceKm < th.ApproachingKm:
		p.Status = StatusApproaching
	case p.DistanceKm < th.InTransitKm:
		p.Status = StatusInTransit
	default:
		p.Status = StatusOnTheWay
	}

	p.Percent = math.Min(100, math.Max(0, (1-p.DistanceKm/th.ProgressSpanKm)*100))
	return p
}

// String renders a one-line summary.
func (p Progress) String() string {
	if !p.HasPosition {
		return p.Status
	}
	return fmt.Sprintf("%s | %.2f km | %3.0f%% | updated %s",
		p.Status, p.DistanceKm, p.Percent, p.LastUpdate.Local().Format("15:04:05"))
}
