package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halonen/skywatch/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

func record(service string, ts time.Time, errorRate float64) *models.ServiceMetrics {
	return &models.ServiceMetrics{
		ServiceName:   service,
		Timestamp:     ts,
		RequestRate:   100,
		ErrorRate:     errorRate,
		LatencyP50:    40,
		LatencyP95:    120,
		LatencyP99:    300,
		CPUUsage:      0.4,
		MemoryUsage:   500e6,
		InstanceCount: 2,
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}

func TestUpsertReplacesOnSameKey(t *testing.T) {
	st := newTestStore(t)
	ts := time.Now().Truncate(time.Second)

	require.NoError(t, st.UpsertMetrics(record("svc-a", ts, 0.01)))
	require.NoError(t, st.UpsertMetrics(record("svc-a", ts, 0.99)))

	rows, err := st.MetricsSince("svc-a", ts.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1, "same (service, timestamp) key must replace, not duplicate")
	assert.Equal(t, 0.99, rows[0].ErrorRate)
}

func TestUpsertDistinctKeysAccumulate(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().Truncate(time.Second)

	require.NoError(t, st.UpsertMetrics(record("svc-a", base, 0.01)))
	require.NoError(t, st.UpsertMetrics(record("svc-a", base.Add(time.Minute), 0.02)))
	require.NoError(t, st.UpsertMetrics(record("svc-b", base, 0.03)))

	rows, err := st.MetricsSince("svc-a", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMetricsSinceOrderedAscending(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.UpsertMetrics(record("svc-a", base.Add(time.Duration(i)*time.Minute), 0)))
	}

	rows, err := st.MetricsSince("svc-a", base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i].Timestamp.After(rows[i-1].Timestamp))
	}
}

func TestRecentMetricsOrderedDescending(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.UpsertMetrics(record("svc-a", base.Add(time.Duration(i)*time.Minute), 0)))
	}

	rows, err := st.RecentMetrics("svc-a", base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i].Timestamp.Before(rows[i-1].Timestamp))
	}
}

func TestMetricsSinceEmptyResultIsNotError(t *testing.T) {
	st := newTestStore(t)
	rows, err := st.MetricsSince("nobody", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLatestMetricsAllReturnsOnePerService(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	require.NoError(t, st.UpsertMetrics(record("svc-a", base, 0.01)))
	require.NoError(t, st.UpsertMetrics(record("svc-a", base.Add(time.Minute), 0.02)))
	require.NoError(t, st.UpsertMetrics(record("svc-b", base, 0.03)))

	rows, err := st.LatestMetricsAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byService := map[string]float64{}
	for _, r := range rows {
		byService[r.ServiceName] = r.ErrorRate
	}
	assert.Equal(t, 0.02, byService["svc-a"], "must be the most recent row")
	assert.Equal(t, 0.03, byService["svc-b"])
}

func TestAnomaliesFilterAndOrder(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i, svc := range []string{"svc-a", "svc-b", "svc-a"} {
		require.NoError(t, st.AppendAnomaly(&models.Anomaly{
			ServiceName: svc,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Kind:        models.KindMetricDeviation,
			Severity:    models.SeverityLow,
		}))
	}

	all, err := st.Anomalies("", base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.After(all[i-1].Timestamp), "newest first")
	}

	only, err := st.Anomalies("svc-a", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, only, 2)

	none, err := st.Anomalies("svc-a", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRegisterServiceDuplicate(t *testing.T) {
	st := newTestStore(t)

	svc, err := st.RegisterService("svc-a", "microservice")
	require.NoError(t, err)
	assert.Equal(t, models.ServiceActive, svc.Status)

	_, err = st.RegisterService("svc-a", "microservice")
	assert.ErrorIs(t, err, ErrServiceExists)
}

func TestTouchServiceAutoRegisters(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()

	require.NoError(t, st.TouchService("fresh", now))

	services, err := st.ListServices()
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "fresh", services[0].Name)
	assert.Equal(t, models.ServiceActive, services[0].Status)
}

func TestTouchServiceUpdatesLastSeen(t *testing.T) {
	st := newTestStore(t)
	_, err := st.RegisterService("svc-a", "microservice")
	require.NoError(t, err)

	later := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, st.TouchService("svc-a", later))

	services, err := st.ListServices()
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.WithinDuration(t, later, services[0].LastSeen, time.Second)
}

func TestActiveServicesSortedByName(t *testing.T) {
	st := newTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := st.RegisterService(name, "microservice")
		require.NoError(t, err)
	}

	names, err := st.ActiveServices()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}
