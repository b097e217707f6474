// Package server provides the Skywatch Gin-based REST API: the service
// registry, health summaries, metric history, anomaly queries and the
// manual collection trigger.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/halonen/skywatch/internal/collector"
	"github.com/halonen/skywatch/internal/detector"
	"github.com/halonen/skywatch/internal/health"
	"github.com/halonen/skywatch/internal/models"
	"github.com/halonen/skywatch/internal/store"
)

// Server bundles the handles the HTTP layer needs.
type Server struct {
	store     *store.Store
	collector *collector.Collector
	detector  *detector.Detector
	logger    *zap.Logger
}

// New creates a Server.
func New(st *store.Store, c *collector.Collector, d *detector.Detector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: st, collector: c, detector: d, logger: logger.Named("api")}
}

// RegisterRoutes wires up all routes on the given engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/services", s.handleListServices)
		api.POST("/services/register", s.handleRegisterService)
		api.GET("/health/summary", s.handleHealthSummary)
		api.GET("/health/anomalies", s.handleAnomalies)
		api.GET("/metrics/history", s.handleHistory)
		api.POST("/collect/:service", s.handleTriggerCollection)
	}

	// Liveness + self-instrumentation, used by probes and scrapers
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// ─── DTOs ─────────────────────────────────────────────────────────────────────

type serviceInfo struct {
	Name     string               `json:"name"`
	Type     string               `json:"type"`
	Status   models.ServiceStatus `json:"status"`
	LastSeen time.Time            `json:"last_seen"`
}

type latencySummary struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type resourceSummary struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
}

type healthSummary struct {
	ServiceName   string          `json:"service_name"`
	Timestamp     time.Time       `json:"timestamp"`
	RequestRate   float64         `json:"request_rate"`
	ErrorRate     float64         `json:"error_rate"`
	Latency       latencySummary  `json:"latency"`
	Resources     resourceSummary `json:"resources"`
	RestartCount  int             `json:"restart_count"`
	InstanceCount int             `json:"instance_count"`
	HealthScore   int             `json:"health_score"`
	Status        health.Status   `json:"status"`
}

type anomalyInfo struct {
	ID              uint            `json:"id"`
	ServiceName     string          `json:"service_name"`
	Timestamp       time.Time       `json:"timestamp"`
	AnomalyType     string          `json:"anomaly_type"`
	Severity        models.Severity `json:"severity"`
	AnomalyScore    float64         `json:"anomaly_score"`
	AffectedMetrics []string        `json:"affected_metrics"`
	Description     string          `json:"description"`
}

func summarize(m *models.ServiceMetrics) healthSummary {
	score, status := health.Score(m)
	return healthSummary{
		ServiceName: m.ServiceName,
		Timestamp:   m.Timestamp,
		RequestRate: m.RequestRate,
		ErrorRate:   m.ErrorRate,
		Latency: latencySummary{
			P50: m.LatencyP50,
			P95: m.LatencyP95,
			P99: m.LatencyP99,
		},
		Resources: resourceSummary{
			CPU:    m.CPUUsage,
			Memory: m.MemoryUsage,
		},
		RestartCount:  m.RestartCount,
		InstanceCount: m.InstanceCount,
		HealthScore:   score,
		Status:        status,
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// handleListServices returns every registered service.
func (s *Server) handleListServices(c *gin.Context) {
	services, err := s.store.ListServices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]serviceInfo, 0, len(services))
	for _, svc := range services {
		out = append(out, serviceInfo{
			Name:     svc.Name,
			Type:     svc.Type,
			Status:   svc.Status,
			LastSeen: svc.LastSeen,
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleRegisterService creates a registry entry.
//
//	POST /api/services/register
//	Body: { "service_name": "api-gateway", "service_type": "microservice" }
func (s *Server) handleRegisterService(c *gin.Context) {
	var body struct {
		ServiceName string `json:"service_name" binding:"required"`
		ServiceType string `json:"service_type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "service_name required"})
		return
	}
	if body.ServiceType == "" {
		body.ServiceType = "unknown"
	}

	if _, err := s.store.RegisterService(body.ServiceName, body.ServiceType); err != nil {
		if errors.Is(err, store.ErrServiceExists) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Service already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Service registered"})
}

// handleHealthSummary returns the latest snapshot per service with the
// health score computed at read time. An optional ?service= narrows to one.
func (s *Server) handleHealthSummary(c *gin.Context) {
	service := c.Query("service")

	var (
		rows []models.ServiceMetrics
		err  error
	)
	if service != "" {
		var m *models.ServiceMetrics
		m, err = s.store.LatestMetrics(service)
		if err == nil {
			rows = []models.ServiceMetrics{*m}
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			err = nil
		}
	} else {
		rows, err = s.store.LatestMetricsAll()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]healthSummary, 0, len(rows))
	for i := range rows {
		out = append(out, summarize(&rows[i]))
	}
	c.JSON(http.StatusOK, out)
}

// handleAnomalies returns recent anomalies, newest first.
// Query params: ?service= (optional), ?hours= (default 24).
func (s *Server) handleAnomalies(c *gin.Context) {
	since := time.Now().Add(-lookbackHours(c))
	rows, err := s.store.Anomalies(c.Query("service"), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]anomalyInfo, 0, len(rows))
	for i := range rows {
		a := &rows[i]
		out = append(out, anomalyInfo{
			ID:              a.ID,
			ServiceName:     a.ServiceName,
			Timestamp:       a.Timestamp,
			AnomalyType:     a.Kind,
			Severity:        a.Severity,
			AnomalyScore:    a.Score,
			AffectedMetrics: a.AffectedList(),
			Description:     a.Description,
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleHistory returns a service's snapshots oldest first.
// Query params: ?service= (required), ?hours= (default 24).
func (s *Server) handleHistory(c *gin.Context) {
	service := c.Query("service")
	if service == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service parameter required"})
		return
	}

	rows, err := s.store.MetricsSince(service, time.Now().Add(-lookbackHours(c)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// handleTriggerCollection runs collect + detect for one service on demand.
// A store failure reports failure for this call alone.
func (s *Server) handleTriggerCollection(c *gin.Context) {
	service := c.Param("service")

	m, err := s.collector.Collect(c.Request.Context(), service)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	anomalies, err := s.detector.Detect(c.Request.Context(), service)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"metrics":            m,
		"anomalies_detected": len(anomalies),
	})
}

// lookbackHours reads ?hours= with a 24h default.
func lookbackHours(c *gin.Context) time.Duration {
	if h, err := time.ParseDuration(c.DefaultQuery("hours", "24") + "h"); err == nil && h > 0 {
		return h
	}
	return 24 * time.Hour
}
