// Package metrics exposes Skywatch's own Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectionsTotal counts collection attempts per source backend.
	CollectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_collections_total",
			Help: "Total number of metric collection attempts",
		},
		[]string{"source", "outcome"},
	)

	// CollectionDuration measures one collection cycle for one service.
	CollectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skywatch_collection_duration_seconds",
			Help:    "Duration of a single-service collection cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AnomaliesDetected counts emitted anomaly records by severity.
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_anomalies_detected_total",
			Help: "Total number of anomaly records written",
		},
		[]string{"severity"},
	)

	// DetectionDuration measures one detection cycle for one service.
	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skywatch_detection_duration_seconds",
			Help:    "Duration of a single-service detection cycle",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// ActiveServices tracks how many services the scheduler iterated last tick.
	ActiveServices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skywatch_active_services",
			Help: "Number of active services in the registry",
		},
	)

	// StoreErrors counts failed store operations by operation name.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skywatch_store_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"operation"},
	)
)
