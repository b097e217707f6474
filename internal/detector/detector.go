package detector

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/halonen/skywatch/internal/metrics"
	"github.com/halonen/skywatch/internal/models"
	"github.com/halonen/skywatch/internal/store"
)

// Config tunes the detection window and model.
type Config struct {
	Lookback      time.Duration // window size; default 24h
	MinSamples    int           // hard precondition for a fit; default 10
	Contamination float64       // assumed outlier fraction; default 0.1
	RecentPoints  int           // observations eligible for emission; default 5
}

func (c *Config) fillDefaults() {
	if c.Lookback <= 0 {
		c.Lookback = 24 * time.Hour
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
	if c.Contamination <= 0 || c.Contamination >= 1 {
		c.Contamination = 0.1
	}
	if c.RecentPoints <= 0 {
		c.RecentPoints = 5
	}
}

// Detector refits an ECOD model on a service's recent window each cycle and
// writes anomaly records for outlying recent observations. It keeps no
// state between calls.
type Detector struct {
	store  *store.Store
	cfg    Config
	logger *zap.Logger
}

// New creates a Detector. Zero Config fields fall back to defaults.
func New(st *store.Store, cfg Config, logger *zap.Logger) *Detector {
	cfg.fillDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{store: st, cfg: cfg, logger: logger.Named("detector")}
}

// Detect loads the lookback window for one service, fits the model, and
// persists an anomaly record for each of the most recent observations the
// model labels as outlying. Fewer than MinSamples records yields no
// anomalies and no error. Window-load and store failures abort this
// service's cycle only.
func (d *Detector) Detect(ctx context.Context, service string) ([]models.Anomaly, error) {
	started := time.Now()
	defer func() { metrics.DetectionDuration.Observe(time.Since(started).Seconds()) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window, err := d.store.RecentMetrics(service, time.Now().Add(-d.cfg.Lookback))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("recent_metrics").Inc()
		return nil, fmt.Errorf("load window for %s: %w", service, err)
	}
	if len(window) < d.cfg.MinSamples {
		d.logger.Debug("insufficient history",
			zap.String("service", service),
			zap.Int("samples", len(window)),
			zap.Int("required", d.cfg.MinSamples))
		return nil, nil
	}

	x := make([][]float64, len(window))
	for i := range window {
		x[i] = window[i].FeatureVector()
	}

	model := &ECOD{Contamination: d.cfg.Contamination}
	res, err := model.FitPredict(x)
	if err != nil {
		return nil, fmt.Errorf("fit model for %s: %w", service, err)
	}

	means, stds := featureStats(x)

	recent := d.cfg.RecentPoints
	if recent > len(window) {
		recent = len(window)
	}

	now := time.Now()
	var out []models.Anomaly
	for i := 0; i < recent; i++ {
		if !res.Labels[i] {
			continue
		}
		severity := severityFromScore(res.Scores[i])
		affected := affectedFeatures(x[i], means, stds)

		a := models.Anomaly{
			ServiceName:     service,
			Timestamp:       now,
			Kind:            models.KindMetricDeviation,
			Severity:        severity,
			Score:           res.Scores[i],
			AffectedMetrics: models.JoinAffected(affected),
			Description:     describe(severity, affected),
			CreatedAt:       now,
		}
		if err := d.store.AppendAnomaly(&a); err != nil {
			metrics.StoreErrors.WithLabelValues("append_anomaly").Inc()
			return out, err
		}
		metrics.AnomaliesDetected.WithLabelValues(string(severity)).Inc()
		out = append(out, a)

		d.logger.Info("anomaly detected",
			zap.String("service", service),
			zap.String("severity", string(severity)),
			zap.Float64("score", res.Scores[i]),
			zap.Strings("affected", affected))
	}
	return out, nil
}

// severityFromScore maps a normalized [0,1] anomaly score to a severity.
func severityFromScore(score float64) models.Severity {
	switch {
	case score > 0.9:
		return models.SeverityCritical
	case score > 0.7:
		return models.SeverityHigh
	case score > 0.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// featureStats returns per-column mean and standard deviation across the
// entire window.
func featureStats(x [][]float64) (means, stds []float64) {
	d := len(x[0])
	means = make([]float64, d)
	stds = make([]float64, d)
	col := make([]float64, len(x))
	for j := 0; j < d; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		means[j], stds[j] = stat.MeanStdDev(col, nil)
	}
	return means, stds
}

// affectedFeatures flags the features of one observation that deviate from
// the window mean by more than two standard deviations.
func affectedFeatures(row, means, stds []float64) []string {
	var affected []string
	for j, name := range models.FeatureNames {
		if math.Abs(row[j]-means[j]) > 2*stds[j] {
			affected = append(affected, name)
		}
	}
	return affected
}

// describe builds the human-readable anomaly description.
func describe(severity models.Severity, affected []string) string {
	title := capitalize(string(severity))
	if len(affected) == 0 {
		return fmt.Sprintf("%s anomaly detected in service behavior", title)
	}
	return fmt.Sprintf("%s anomaly: unusual patterns in %s", title, models.JoinAffected(affected))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
