package detector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halonen/skywatch/internal/models"
	"github.com/halonen/skywatch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

// typical returns the steady-state snapshot used by these tests. Keeping
// the cluster exactly constant makes the model's labeling deterministic.
func typical(service string, ts time.Time) *models.ServiceMetrics {
	return &models.ServiceMetrics{
		ServiceName:   service,
		Timestamp:     ts,
		RequestRate:   100,
		ErrorRate:     0.01,
		LatencyP50:    40,
		LatencyP95:    120,
		LatencyP99:    300,
		CPUUsage:      0.4,
		MemoryUsage:   500e6,
		RestartCount:  0,
		InstanceCount: 2,
	}
}

// seed writes n typical snapshots ending minutesAgoEnd minutes ago.
func seed(t *testing.T, st *store.Store, service string, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(n-i+1) * time.Minute)
		require.NoError(t, st.UpsertMetrics(typical(service, ts)))
	}
}

func TestDetectInsufficientHistory(t *testing.T) {
	st := newTestStore(t)
	d := New(st, Config{}, nil)
	seed(t, st, "svc-a", 9)

	anomalies, err := d.Detect(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Empty(t, anomalies)

	stored, err := st.Anomalies("svc-a", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stored, "no anomaly record may be written below the sample minimum")
}

func TestDetectFlatWindowIsQuiet(t *testing.T) {
	st := newTestStore(t)
	d := New(st, Config{}, nil)
	seed(t, st, "svc-a", 20)

	anomalies, err := d.Detect(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetectCPUSpikeAttribution(t *testing.T) {
	st := newTestStore(t)
	d := New(st, Config{}, nil)
	seed(t, st, "svc-a", 15)

	spiked := typical("svc-a", time.Now().Add(-30*time.Second))
	spiked.CPUUsage = 5.0
	require.NoError(t, st.UpsertMetrics(spiked))

	anomalies, err := d.Detect(context.Background(), "svc-a")
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	assert.Equal(t, []string{models.ReadingCPUUsage}, anomalies[0].AffectedList(),
		"only the deviating feature may be attributed")
}

func TestDetectEndToEndErrorRate(t *testing.T) {
	st := newTestStore(t)
	d := New(st, Config{}, nil)
	seed(t, st, "api-gateway", 15)

	injected := typical("api-gateway", time.Now().Add(-30*time.Second))
	injected.ErrorRate = 0.5
	require.NoError(t, st.UpsertMetrics(injected))

	anomalies, err := d.Detect(context.Background(), "api-gateway")
	require.NoError(t, err)
	require.Len(t, anomalies, 1, "exactly one anomaly for the injected observation")

	a := anomalies[0]
	assert.Equal(t, "api-gateway", a.ServiceName)
	assert.Equal(t, models.KindMetricDeviation, a.Kind)
	assert.Contains(t, a.AffectedList(), models.ReadingErrorRate)
	assert.Greater(t, a.Score, 0.9)
	assert.Equal(t, models.SeverityCritical, a.Severity, "severity must match the score bracket")
	assert.Contains(t, a.Description, models.ReadingErrorRate)

	stored, err := st.Anomalies("api-gateway", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 1, "the anomaly must be persisted")
	assert.Equal(t, a.Severity, stored[0].Severity)
}

func TestDetectIgnoresOldOutliers(t *testing.T) {
	st := newTestStore(t)
	d := New(st, Config{}, nil)

	// spike is the oldest record, well outside the recent-5 slice
	spiked := typical("svc-a", time.Now().Add(-40*time.Minute))
	spiked.CPUUsage = 5.0
	require.NoError(t, st.UpsertMetrics(spiked))
	seed(t, st, "svc-a", 15)

	anomalies, err := d.Detect(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Empty(t, anomalies, "only the most recent observations are eligible")
}

func TestSeverityFromScoreMonotonic(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, severityFromScore(0.95))
	assert.Equal(t, models.SeverityHigh, severityFromScore(0.8))
	assert.Equal(t, models.SeverityMedium, severityFromScore(0.6))
	assert.Equal(t, models.SeverityLow, severityFromScore(0.3))

	// boundaries are strict
	assert.Equal(t, models.SeverityHigh, severityFromScore(0.9))
	assert.Equal(t, models.SeverityMedium, severityFromScore(0.7))
	assert.Equal(t, models.SeverityLow, severityFromScore(0.5))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t,
		"High anomaly: unusual patterns in cpu_usage, memory_usage",
		describe(models.SeverityHigh, []string{"cpu_usage", "memory_usage"}))
	assert.Equal(t,
		"Critical anomaly detected in service behavior",
		describe(models.SeverityCritical, nil))
}
