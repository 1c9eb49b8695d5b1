// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	// HTTPErrorsTotal tracks HTTP errors by error type
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)

// Broadcaster metrics
var (
	// ConnectedObservers tracks the number of connected WebSocket observers
	ConnectedObservers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_observers",
			Help: "Number of currently connected WebSocket observers",
		},
	)

	// WatchedPolls tracks the number of polls with at least one observer
	WatchedPolls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_watched_polls",
			Help: "Number of polls with at least one subscribed observer",
		},
	)

	// BroadcastsTotal counts snapshot broadcasts by poll update fan-outs
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_broadcasts_total",
			Help: "Total poll update broadcasts",
		},
	)

	// DeliveriesTotal counts per-observer delivery attempts by status
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_deliveries_total",
			Help: "Per-observer delivery attempts by status (delivered/failed)",
		},
		[]string{"status"},
	)

	// EvictedObservers counts observers dropped after a failed delivery
	EvictedObservers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_evicted_observers_total",
			Help: "Observers removed from the registry after a failed delivery",
		},
	)
)

// Vote metrics
var (
	// VotesTotal counts vote casts by outcome (recorded/repeat/rejected)
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_total",
			Help: "Vote cast attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SnapshotBuildDuration tracks snapshot projection latency in seconds
	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_build_duration_seconds",
			Help:    "Poll snapshot build duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Vote outcome label values for VotesTotal.
const (
	OutcomeRecorded = "recorded"
	OutcomeRepeat   = "repeat"
	OutcomeRejected = "rejected"
)
