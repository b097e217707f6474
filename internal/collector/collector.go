// Package collector normalizes raw source readings into canonical metric
// snapshots and persists them. It is stateless between invocations.
package collector

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/halonen/skywatch/internal/metrics"
	"github.com/halonen/skywatch/internal/models"
	"github.com/halonen/skywatch/internal/source"
	"github.com/halonen/skywatch/internal/store"
)

// Collector pulls readings from one Source and writes snapshots to the Store.
type Collector struct {
	source source.Source
	store  *store.Store
	logger *zap.Logger
}

// New creates a Collector.
func New(src source.Source, st *store.Store, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{source: src, store: st, logger: logger.Named("collector")}
}

// Collect reads the source for one service, builds the canonical snapshot
// with zero defaults for absent or malformed readings, and upserts it.
// A source failure degrades every reading to zero; only a store failure is
// returned to the caller.
func (c *Collector) Collect(ctx context.Context, service string) (*models.ServiceMetrics, error) {
	started := time.Now()
	defer func() { metrics.CollectionDuration.Observe(time.Since(started).Seconds()) }()

	readings, err := c.source.Read(ctx, service)
	if err != nil {
		// Partial data is acceptable and expected; an unreachable source
		// just produces an all-zero snapshot for this instant.
		c.logger.Warn("source read failed, storing zero snapshot",
			zap.String("service", service),
			zap.String("source", c.source.Name()),
			zap.Error(err))
		readings = source.Readings{}
		metrics.CollectionsTotal.WithLabelValues(c.source.Name(), "degraded").Inc()
	} else {
		metrics.CollectionsTotal.WithLabelValues(c.source.Name(), "ok").Inc()
	}

	now := time.Now()
	m := &models.ServiceMetrics{
		ServiceName:   service,
		Timestamp:     now,
		RequestRate:   reading(readings, models.ReadingRequestRate),
		ErrorRate:     reading(readings, models.ReadingErrorRate),
		LatencyP50:    reading(readings, models.ReadingLatencyP50),
		LatencyP95:    reading(readings, models.ReadingLatencyP95),
		LatencyP99:    reading(readings, models.ReadingLatencyP99),
		CPUUsage:      reading(readings, models.ReadingCPUUsage),
		MemoryUsage:   reading(readings, models.ReadingMemoryUsage),
		RestartCount:  int(reading(readings, models.ReadingRestartCount)),
		InstanceCount: int(reading(readings, models.ReadingInstanceCount)),
	}

	if err := c.store.UpsertMetrics(m); err != nil {
		metrics.StoreErrors.WithLabelValues("upsert_metrics").Inc()
		return nil, err
	}
	if err := c.store.TouchService(service, now); err != nil {
		metrics.StoreErrors.WithLabelValues("touch_service").Inc()
		return nil, err
	}
	return m, nil
}

// reading extracts one value with a 0.0 default for absent or non-finite
// entries.
func reading(r source.Readings, name string) float64 {
	v, ok := r[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
