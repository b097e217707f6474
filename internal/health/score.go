// Package health computes the deterministic 0-100 health score for a
// metrics snapshot. Scoring happens at read time; nothing here touches
// storage.
package health

import "github.com/halonen/skywatch/internal/models"

// Status is the discrete health state derived from the score.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Score maps a snapshot to a 0-100 score and its status. It starts at 100
// and subtracts fixed penalties per metric, using the worst matching
// bracket; penalties from different metrics stack.
func Score(m *models.ServiceMetrics) (int, Status) {
	score := 100

	switch {
	case m.ErrorRate > 0.10:
		score -= 30
	case m.ErrorRate > 0.05:
		score -= 15
	case m.ErrorRate > 0.01:
		score -= 5
	}

	// latency_p95 in milliseconds
	switch {
	case m.LatencyP95 > 1000:
		score -= 25
	case m.LatencyP95 > 500:
		score -= 15
	case m.LatencyP95 > 200:
		score -= 5
	}

	// cpu_usage as a fraction of one core / quota
	switch {
	case m.CPUUsage > 0.90:
		score -= 20
	case m.CPUUsage > 0.70:
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	return score, StatusFromScore(score)
}

// StatusFromScore converts a health score to its status bracket.
func StatusFromScore(score int) Status {
	switch {
	case score >= 90:
		return StatusHealthy
	case score >= 70:
		return StatusDegraded
	case score >= 50:
		return StatusWarning
	default:
		return StatusCritical
	}
}
