package collector

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halonen/skywatch/internal/models"
	"github.com/halonen/skywatch/internal/source"
	"github.com/halonen/skywatch/internal/store"
)

type fakeSource struct {
	readings source.Readings
	err      error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Read(context.Context, string) (source.Readings, error) {
	return f.readings, f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

func TestCollectPartialReadings(t *testing.T) {
	st := newTestStore(t)
	c := New(&fakeSource{readings: source.Readings{
		models.ReadingRequestRate: 42.5,
		models.ReadingCPUUsage:    0.3,
	}}, st, nil)

	m, err := c.Collect(context.Background(), "svc-a")
	require.NoError(t, err)

	assert.Equal(t, 42.5, m.RequestRate)
	assert.Equal(t, 0.3, m.CPUUsage)
	assert.Zero(t, m.ErrorRate, "absent readings default to zero")
	assert.Zero(t, m.LatencyP95)
	assert.Zero(t, m.RestartCount)

	stored, err := st.LatestMetrics("svc-a")
	require.NoError(t, err)
	assert.Equal(t, 42.5, stored.RequestRate)
}

func TestCollectSourceFailureStoresZeroSnapshot(t *testing.T) {
	st := newTestStore(t)
	c := New(&fakeSource{err: errors.New("connection refused")}, st, nil)

	m, err := c.Collect(context.Background(), "svc-a")
	require.NoError(t, err, "a source failure is not a collection failure")

	assert.Zero(t, m.RequestRate)
	assert.Zero(t, m.ErrorRate)
	assert.Zero(t, m.CPUUsage)
	assert.Zero(t, m.InstanceCount)
	assert.False(t, m.Timestamp.IsZero())

	stored, err := st.LatestMetrics("svc-a")
	require.NoError(t, err)
	assert.Equal(t, m.Timestamp.Unix(), stored.Timestamp.Unix())
}

func TestCollectNonFiniteReadingsBecomeZero(t *testing.T) {
	st := newTestStore(t)
	c := New(&fakeSource{readings: source.Readings{
		models.ReadingRequestRate: math.NaN(),
		models.ReadingErrorRate:   math.Inf(1),
		models.ReadingLatencyP50:  math.Inf(-1),
		models.ReadingCPUUsage:    0.5,
	}}, st, nil)

	m, err := c.Collect(context.Background(), "svc-a")
	require.NoError(t, err)

	assert.Zero(t, m.RequestRate)
	assert.Zero(t, m.ErrorRate)
	assert.Zero(t, m.LatencyP50)
	assert.Equal(t, 0.5, m.CPUUsage)
}

func TestCollectRegistersService(t *testing.T) {
	st := newTestStore(t)
	c := New(&fakeSource{readings: source.Readings{}}, st, nil)

	_, err := c.Collect(context.Background(), "brand-new")
	require.NoError(t, err)

	active, err := st.ActiveServices()
	require.NoError(t, err)
	assert.Contains(t, active, "brand-new", "collection must register unknown services")
}

// Collecting two services in either order leaves each service with the same
// final state: snapshots are keyed per service and never interact.
func TestCollectOrderIndependence(t *testing.T) {
	run := func(t *testing.T, order []string) map[string]float64 {
		st := newTestStore(t)
		rates := map[string]float64{"svc-a": 10, "svc-b": 20}
		got := map[string]float64{}
		for _, svc := range order {
			c := New(&fakeSource{readings: source.Readings{
				models.ReadingRequestRate: rates[svc],
			}}, st, nil)
			_, err := c.Collect(context.Background(), svc)
			require.NoError(t, err)
		}
		for svc := range rates {
			m, err := st.LatestMetrics(svc)
			require.NoError(t, err)
			got[svc] = m.RequestRate
		}
		return got
	}

	ab := run(t, []string{"svc-a", "svc-b"})
	ba := run(t, []string{"svc-b", "svc-a"})
	assert.Equal(t, ab, ba)
}

func TestCollectUpsertsSameInstant(t *testing.T) {
	st := newTestStore(t)

	ts := time.Now().Truncate(time.Second)
	first := &models.ServiceMetrics{ServiceName: "svc-a", Timestamp: ts, RequestRate: 1}
	second := &models.ServiceMetrics{ServiceName: "svc-a", Timestamp: ts, RequestRate: 2}
	require.NoError(t, st.UpsertMetrics(first))
	require.NoError(t, st.UpsertMetrics(second))

	since := ts.Add(-time.Minute)
	rows, err := st.MetricsSince("svc-a", since)
	require.NoError(t, err)
	require.Len(t, rows, 1, "same service and instant must collapse to one row")
	assert.Equal(t, 2.0, rows[0].RequestRate)
}
