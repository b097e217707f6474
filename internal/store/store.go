// Package store manages the Skywatch persistence layer.
// It initializes GORM with SQLite and owns the three persisted tables:
// the service registry, the metrics time series and the anomaly log.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/halonen/skywatch/internal/models"
)

// ErrServiceExists is returned by RegisterService for duplicate names.
var ErrServiceExists = errors.New("service already registered")

// Store wraps the database handle. Every method is a self-contained
// operation; concurrent callers rely on SQLite's single-row atomicity,
// no locks are held across calls.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and runs AutoMigrate.
// Driver must be "sqlite" or empty.
func Open(driver, path string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported db_driver %q (use 'sqlite')", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.Service{}, &models.ServiceMetrics{}, &models.Anomaly{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// ─── Metrics time series ──────────────────────────────────────────────────────

// UpsertMetrics writes a snapshot. A row with the same (service, timestamp)
// key is replaced in place; the key conflict is the defined replace
// behavior, not an error.
func (s *Store) UpsertMetrics(m *models.ServiceMetrics) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "service_name"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"request_rate", "error_rate",
			"latency_p50", "latency_p95", "latency_p99",
			"cpu_usage", "memory_usage",
			"restart_count", "instance_count",
		}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("upsert metrics for %s: %w", m.ServiceName, err)
	}
	return nil
}

// MetricsSince returns all snapshots for a service newer than since,
// oldest first. No rows is an empty slice, not an error.
func (s *Store) MetricsSince(service string, since time.Time) ([]models.ServiceMetrics, error) {
	var rows []models.ServiceMetrics
	err := s.db.
		Where("service_name = ? AND timestamp > ?", service, since).
		Order("timestamp asc").
		Find(&rows).Error
	return rows, err
}

// RecentMetrics returns snapshots newer than since, most recent first.
// This is the detector's window-load order.
func (s *Store) RecentMetrics(service string, since time.Time) ([]models.ServiceMetrics, error) {
	var rows []models.ServiceMetrics
	err := s.db.
		Where("service_name = ? AND timestamp > ?", service, since).
		Order("timestamp desc").
		Find(&rows).Error
	return rows, err
}

// LatestMetrics returns the most recent snapshot for one service.
func (s *Store) LatestMetrics(service string) (*models.ServiceMetrics, error) {
	var m models.ServiceMetrics
	err := s.db.
		Where("service_name = ?", service).
		Order("timestamp desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LatestMetricsAll returns the most recent snapshot per service.
func (s *Store) LatestMetricsAll() ([]models.ServiceMetrics, error) {
	var rows []models.ServiceMetrics
	err := s.db.Raw(`
		SELECT sm.* FROM service_metrics sm
		INNER JOIN (
			SELECT service_name, MAX(timestamp) AS max_ts
			FROM service_metrics
			GROUP BY service_name
		) latest ON sm.service_name = latest.service_name
		       AND sm.timestamp = latest.max_ts`).
		Scan(&rows).Error
	return rows, err
}

// ─── Anomaly log ──────────────────────────────────────────────────────────────

// AppendAnomaly inserts an anomaly record. There is no dedup key; rows are
// append-only.
func (s *Store) AppendAnomaly(a *models.Anomaly) error {
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("append anomaly for %s: %w", a.ServiceName, err)
	}
	return nil
}

// Anomalies returns anomaly records newer than since, most recent first.
// An empty service matches all services.
func (s *Store) Anomalies(service string, since time.Time) ([]models.Anomaly, error) {
	q := s.db.Where("timestamp > ?", since)
	if service != "" {
		q = q.Where("service_name = ?", service)
	}
	var rows []models.Anomaly
	err := q.Order("timestamp desc").Find(&rows).Error
	return rows, err
}

// ─── Service registry ─────────────────────────────────────────────────────────

// RegisterService creates a registry entry. Duplicate names return
// ErrServiceExists.
func (s *Store) RegisterService(name, serviceType string) (*models.Service, error) {
	var existing models.Service
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return nil, ErrServiceExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	svc := models.Service{
		Name:     name,
		Type:     serviceType,
		Status:   models.ServiceActive,
		LastSeen: time.Now(),
	}
	if err := s.db.Create(&svc).Error; err != nil {
		return nil, fmt.Errorf("register service %s: %w", name, err)
	}
	return &svc, nil
}

// TouchService updates last_seen; unknown services are auto-registered as
// active so that a manually triggered collection creates the entry.
func (s *Store) TouchService(name string, now time.Time) error {
	res := s.db.Model(&models.Service{}).
		Where("name = ?", name).
		Update("last_seen", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		_, err := s.RegisterService(name, "unknown")
		if err != nil && !errors.Is(err, ErrServiceExists) {
			return err
		}
	}
	return nil
}

// ActiveServices returns the names of services with status "active".
func (s *Store) ActiveServices() ([]string, error) {
	var names []string
	err := s.db.Model(&models.Service{}).
		Where("status = ?", models.ServiceActive).
		Order("name asc").
		Pluck("name", &names).Error
	return names, err
}

// ListServices returns every registry entry.
func (s *Store) ListServices() ([]models.Service, error) {
	var rows []models.Service
	err := s.db.Order("name asc").Find(&rows).Error
	return rows, err
}
