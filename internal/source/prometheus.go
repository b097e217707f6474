package source

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/halonen/skywatch/internal/models"
)

// PrometheusSource reads service readings from a Prometheus server via its
// query API. Each reading is fetched with an independent instant query so a
// single failed or empty query never poisons the rest of the snapshot.
type PrometheusSource struct {
	api v1.API
}

// NewPrometheus creates a source against the given Prometheus base URL.
func NewPrometheus(baseURL string) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: baseURL})
	if err != nil {
		return nil, fmt.Errorf("prometheus client: %w", err)
	}
	return &PrometheusSource{api: v1.NewAPI(client)}, nil
}

func (s *PrometheusSource) Name() string { return "prometheus" }

// Read runs the nine instant queries for a service. Histogram quantiles come
// back in seconds and are converted to milliseconds here so every latency in
// the store shares one unit.
func (s *PrometheusSource) Read(ctx context.Context, service string) (Readings, error) {
	r := Readings{}

	set := func(name, query string, scale float64) {
		if v, ok := s.scalar(ctx, query); ok {
			r[name] = v * scale
		}
	}

	set(models.ReadingRequestRate,
		fmt.Sprintf(`sum(rate(http_requests_total{service=%q}[5m]))`, service), 1)
	set(models.ReadingErrorRate,
		fmt.Sprintf(`sum(rate(http_requests_total{service=%q,status=~"5.."}[5m])) / sum(rate(http_requests_total{service=%q}[5m]))`, service, service), 1)

	set(models.ReadingLatencyP50,
		fmt.Sprintf(`histogram_quantile(0.5, rate(http_request_duration_seconds_bucket{service=%q}[5m]))`, service), 1000)
	set(models.ReadingLatencyP95,
		fmt.Sprintf(`histogram_quantile(0.95, rate(http_request_duration_seconds_bucket{service=%q}[5m]))`, service), 1000)
	set(models.ReadingLatencyP99,
		fmt.Sprintf(`histogram_quantile(0.99, rate(http_request_duration_seconds_bucket{service=%q}[5m]))`, service), 1000)

	set(models.ReadingCPUUsage,
		fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{service=%q}[5m]))`, service), 1)
	set(models.ReadingMemoryUsage,
		fmt.Sprintf(`sum(container_memory_usage_bytes{service=%q})`, service), 1)

	set(models.ReadingRestartCount,
		fmt.Sprintf(`sum(kube_pod_container_status_restarts_total{service=%q})`, service), 1)
	set(models.ReadingInstanceCount,
		fmt.Sprintf(`count(kube_pod_info{service=%q})`, service), 1)

	return r, nil
}

// scalar executes one instant query and extracts the first sample value.
// Query errors, empty results and non-finite samples (histogram_quantile
// yields NaN on empty buckets) all report absent.
func (s *PrometheusSource) scalar(ctx context.Context, query string) (float64, bool) {
	result, _, err := s.api.Query(ctx, query, time.Now())
	if err != nil {
		return 0, false
	}
	vec, ok := result.(model.Vector)
	if !ok || len(vec) == 0 {
		return 0, false
	}
	v := float64(vec[0].Value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
