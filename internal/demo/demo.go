// Package demo seeds the store with realistic synthetic metrics so the
// pipeline can be exercised without a live monitoring backend.
package demo

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/halonen/skywatch/internal/models"
	"github.com/halonen/skywatch/internal/store"
)

// Services are the demo registry entries.
var Services = []string{"api-gateway", "user-service", "payment-service", "notification-service"}

type span struct{ lo, hi float64 }

func (s span) sample(rng *rand.Rand) float64 {
	return s.lo + rng.Float64()*(s.hi-s.lo)
}

// pattern holds the base operating ranges for one service type.
type pattern struct {
	requestRate span
	errorRate   span
	latencyP50  span
	latencyP95  span
	latencyP99  span
	cpuUsage    span
	memoryUsage span
	instances   int
}

var patterns = map[string]pattern{
	"api-gateway": {
		requestRate: span{80, 150},
		errorRate:   span{0.001, 0.02},
		latencyP50:  span{30, 60},
		latencyP95:  span{90, 180},
		latencyP99:  span{200, 400},
		cpuUsage:    span{0.3, 0.6},
		memoryUsage: span{400e6, 800e6},
		instances:   3,
	},
	"user-service": {
		requestRate: span{50, 100},
		errorRate:   span{0.005, 0.03},
		latencyP50:  span{40, 80},
		latencyP95:  span{100, 200},
		latencyP99:  span{250, 500},
		cpuUsage:    span{0.2, 0.5},
		memoryUsage: span{300e6, 600e6},
		instances:   2,
	},
	"payment-service": {
		requestRate: span{20, 50},
		errorRate:   span{0.002, 0.015},
		latencyP50:  span{100, 200},
		latencyP95:  span{300, 500},
		latencyP99:  span{600, 1000},
		cpuUsage:    span{0.4, 0.7},
		memoryUsage: span{500e6, 1000e6},
		instances:   4,
	},
	"notification-service": {
		requestRate: span{10, 30},
		errorRate:   span{0.01, 0.05},
		latencyP50:  span{50, 100},
		latencyP95:  span{150, 300},
		latencyP99:  span{400, 700},
		cpuUsage:    span{0.15, 0.4},
		memoryUsage: span{200e6, 500e6},
		instances:   2,
	},
}

// Generator writes synthetic snapshots through the store.
type Generator struct {
	store  *store.Store
	rng    *rand.Rand
	logger *zap.Logger
}

// New creates a Generator seeded from the clock.
func New(st *store.Store, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:  st,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.Named("demo"),
	}
}

// Historical backfills the past N hours with one point per service every
// five minutes, with a 5% chance of a spike or degraded sample.
func (g *Generator) Historical(hours int) error {
	g.registerAll()

	numPoints := hours * 12 // every 5 minutes
	for i := 0; i < numPoints; i++ {
		ts := time.Now().Add(-time.Duration(5*(numPoints-i)) * time.Minute)
		for _, svc := range Services {
			variation := "normal"
			if g.rng.Float64() < 0.05 {
				variation = pick(g.rng, "spike", "degraded")
			}
			if err := g.store.UpsertMetrics(g.snapshot(svc, ts, variation)); err != nil {
				return err
			}
		}
	}
	g.logger.Info("historical data generated",
		zap.Int("hours", hours), zap.Int("points_per_service", numPoints))
	return nil
}

// Live streams one point per service per minute until the duration elapses
// or ctx is canceled, injecting anomalies with 10% probability.
func (g *Generator) Live(ctx context.Context, duration time.Duration) error {
	g.registerAll()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	deadline := time.Now().Add(duration)

	for {
		ts := time.Now()
		for _, svc := range Services {
			variation := "normal"
			if g.rng.Float64() < 0.1 {
				variation = pick(g.rng, "spike", "degraded")
				g.logger.Info("injecting anomaly",
					zap.String("service", svc), zap.String("variation", variation))
			}
			if err := g.store.UpsertMetrics(g.snapshot(svc, ts, variation)); err != nil {
				return err
			}
		}
		g.logger.Info("demo metrics written", zap.Int("services", len(Services)))

		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Generator) registerAll() {
	for _, svc := range Services {
		// duplicate registration is fine
		_, _ = g.store.RegisterService(svc, "microservice")
	}
}

// snapshot builds one synthetic point. Spikes push traffic and cpu up;
// degraded samples drop traffic and multiply the error rate.
func (g *Generator) snapshot(service string, ts time.Time, variation string) *models.ServiceMetrics {
	p, ok := patterns[service]
	if !ok {
		p = patterns["user-service"]
	}

	var requestRate, errorRate, cpuUsage float64
	switch variation {
	case "spike":
		requestRate = span{p.requestRate.hi * 2, p.requestRate.hi * 3}.sample(g.rng)
		errorRate = span{p.errorRate.hi, p.errorRate.hi * 2}.sample(g.rng)
		cpuUsage = span{p.cpuUsage.hi, p.cpuUsage.hi * 1.5}.sample(g.rng)
		if cpuUsage > 0.95 {
			cpuUsage = 0.95
		}
	case "degraded":
		requestRate = span{p.requestRate.lo * 0.5, p.requestRate.lo}.sample(g.rng)
		errorRate = span{p.errorRate.hi * 2, p.errorRate.hi * 5}.sample(g.rng)
		cpuUsage = p.cpuUsage.sample(g.rng)
	default:
		requestRate = p.requestRate.sample(g.rng)
		errorRate = p.errorRate.sample(g.rng)
		cpuUsage = p.cpuUsage.sample(g.rng)
	}

	restarts := 0
	if g.rng.Float64() < 0.05 {
		restarts = g.rng.Intn(2)
	}

	return &models.ServiceMetrics{
		ServiceName:   service,
		Timestamp:     ts,
		RequestRate:   requestRate,
		ErrorRate:     errorRate,
		LatencyP50:    p.latencyP50.sample(g.rng),
		LatencyP95:    p.latencyP95.sample(g.rng),
		LatencyP99:    p.latencyP99.sample(g.rng),
		CPUUsage:      cpuUsage,
		MemoryUsage:   p.memoryUsage.sample(g.rng),
		RestartCount:  restarts,
		InstanceCount: p.instances,
	}
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}
