// Package metrics defines and registers all custom Prometheus metrics for the
// courier tracking API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracking"

// ── Ingestion metrics ─────────────────────────────────────────────────────────

// LocationsIngestedTotal counts position reports that were persisted.
var LocationsIngestedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "locations_ingested_total",
		Help:      "Total number of location reports persisted.",
	},
)

// LocationsRejectedTotal counts position reports that failed a gate.
// Label:
//   - reason: "invalid_input", "forbidden", "not_found" or "internal"
var LocationsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "locations_rejected_total",
		Help:      "Total number of location reports rejected, by reason.",
	},
	[]string{"reason"},
)

// IngestionDuration measures a report from request decode to response.
var IngestionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingestion_duration_seconds",
		Help:      "Duration of location ingestion including persistence and fan-out.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Broadcast metrics ─────────────────────────────────────────────────────────

// SubscribersActive is the number of live subscription connections.
var SubscribersActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers_active",
		Help:      "Current number of live location subscribers across all deliveries.",
	},
)

// DeliveriesWatched is the number of deliveries with at least one subscriber.
var DeliveriesWatched = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "deliveries_watched",
		Help:      "Current number of deliveries with at least one live subscriber.",
	},
)

// BroadcastSendsTotal counts per-subscriber sends.
// Label:
//   - result: "ok" or "failed" (failed subscribers are pruned)
var BroadcastSendsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_sends_total",
		Help:      "Total number of per-subscriber broadcast sends, by result.",
	},
	[]string{"result"},
)

// ── Event bus metrics ─────────────────────────────────────────────────────────

// EventBusPublishTotal counts event bus publish attempts.
// Label:
//   - result: "ok", "failed" or "dropped" (queue full)
var EventBusPublishTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_bus_publish_total",
		Help:      "Total number of event bus publish attempts, by result.",
	},
	[]string{"result"},
)

// EventBusQueueDepth tracks the number of events waiting in each publisher worker.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventBusQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_bus_queue_depth",
		Help:      "Current number of events pending in each publisher worker channel.",
	},
	[]string{"worker_id"},
)
