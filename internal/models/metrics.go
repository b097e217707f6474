package models

import "time"

// Canonical reading names produced by metric sources. The collector maps
// whatever a backend reports onto these nine keys; anything absent is 0.
const (
	ReadingRequestRate   = "request_rate"
	ReadingErrorRate     = "error_rate"
	ReadingLatencyP50    = "latency_p50"
	ReadingLatencyP95    = "latency_p95"
	ReadingLatencyP99    = "latency_p99"
	ReadingCPUUsage      = "cpu_usage"
	ReadingMemoryUsage   = "memory_usage"
	ReadingRestartCount  = "restart_count"
	ReadingInstanceCount = "instance_count"
)

// FeatureNames lists the six numeric features the anomaly detector trains
// on, in matrix column order.
var FeatureNames = []string{
	ReadingRequestRate,
	ReadingErrorRate,
	ReadingLatencyP95,
	ReadingCPUUsage,
	ReadingMemoryUsage,
	ReadingRestartCount,
}

// ServiceMetrics is the canonical snapshot for one service at one instant.
// At most one row exists per (service, timestamp); a later write for the
// same key replaces the earlier one.
//
// Units: latencies in milliseconds, cpu_usage as a fraction of one core (or
// of allocated quota), memory_usage in bytes, error_rate as a 0-1 fraction.
type ServiceMetrics struct {
	ID uint `gorm:"primarykey" json:"-"`

	ServiceName string    `gorm:"uniqueIndex:idx_service_ts;not null" json:"service_name"`
	Timestamp   time.Time `gorm:"uniqueIndex:idx_service_ts;not null" json:"timestamp"`

	RequestRate float64 `json:"request_rate"`
	ErrorRate   float64 `json:"error_rate"`
	LatencyP50  float64 `json:"latency_p50"`
	LatencyP95  float64 `json:"latency_p95"`
	LatencyP99  float64 `json:"latency_p99"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`

	RestartCount  int `json:"restart_count"`
	InstanceCount int `json:"instance_count"`
}

// FeatureVector returns the six detector features in FeatureNames order.
func (m *ServiceMetrics) FeatureVector() []float64 {
	return []float64{
		m.RequestRate,
		m.ErrorRate,
		m.LatencyP95,
		m.CPUUsage,
		m.MemoryUsage,
		float64(m.RestartCount),
	}
}
