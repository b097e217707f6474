package models

import (
	"strings"
	"time"
)

// Severity classifies how abnormal an anomalous observation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// KindMetricDeviation is the only anomaly kind the metric detector emits.
const KindMetricDeviation = "metric_deviation"

// Anomaly is a derived fact produced by the detector. Rows are append-only
// and never mutated or deleted.
type Anomaly struct {
	ID uint `gorm:"primarykey" json:"id"`

	ServiceName string    `gorm:"index;not null" json:"service_name"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`

	Kind     string   `json:"anomaly_type"`
	Severity Severity `json:"severity"`
	Score    float64  `json:"anomaly_score"`

	// AffectedMetrics holds the flagged metric names joined with ", ",
	// matching the wire format of the anomalies API. May be empty.
	AffectedMetrics string `json:"-"`
	Description     string `json:"description"`

	CreatedAt time.Time `json:"created_at"`
}

// AffectedList splits AffectedMetrics back into individual metric names.
func (a *Anomaly) AffectedList() []string {
	if a.AffectedMetrics == "" {
		return []string{}
	}
	return strings.Split(a.AffectedMetrics, ", ")
}

// JoinAffected is the inverse of AffectedList.
func JoinAffected(names []string) string {
	return strings.Join(names, ", ")
}
