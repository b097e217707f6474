// Package scheduler drives the collection and detection pipeline for every
// active service on a fixed cadence.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/halonen/skywatch/internal/metrics"
	"github.com/halonen/skywatch/internal/models"
)

// Registry lists the services eligible for scheduled processing.
type Registry interface {
	ActiveServices() ([]string, error)
}

// MetricCollector is the collection step of the pipeline.
type MetricCollector interface {
	Collect(ctx context.Context, service string) (*models.ServiceMetrics, error)
}

// AnomalyDetector is the detection step of the pipeline.
type AnomalyDetector interface {
	Detect(ctx context.Context, service string) ([]models.Anomaly, error)
}

// Scheduler owns only its cadence and handles to the registry, collector
// and detector; callers observe it through the store's side effects.
type Scheduler struct {
	registry  Registry
	collector MetricCollector
	detector  AnomalyDetector
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a Scheduler ticking at interval (min 1s, default 60s).
func New(reg Registry, c MetricCollector, d AnomalyDetector, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval < time.Second {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		registry:  reg,
		collector: c,
		detector:  d,
		interval:  interval,
		logger:    logger.Named("scheduler"),
	}
}

// Run loops until ctx is canceled. Every tick it lists active services and
// runs collect + detect for each. A failure for one service never stops
// the remaining services or the next tick; a registry listing failure just
// waits the tick out. The loop terminates on nothing but cancellation.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("starting", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First pass immediately rather than one interval in.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick processes every active service once, sequentially. Services share
// no mutable state except the store, so order is irrelevant.
func (s *Scheduler) tick(ctx context.Context) {
	services, err := s.registry.ActiveServices()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("active_services").Inc()
		s.logger.Error("listing active services failed, skipping tick", zap.Error(err))
		return
	}
	metrics.ActiveServices.Set(float64(len(services)))

	for _, name := range services {
		if ctx.Err() != nil {
			return
		}
		s.process(ctx, name)
	}
}

// process runs one service's collection and detection, absorbing errors.
func (s *Scheduler) process(ctx context.Context, service string) {
	if _, err := s.collector.Collect(ctx, service); err != nil {
		s.logger.Error("collection failed",
			zap.String("service", service), zap.Error(err))
		return
	}
	if _, err := s.detector.Detect(ctx, service); err != nil {
		s.logger.Error("detection failed",
			zap.String("service", service), zap.Error(err))
	}
}
