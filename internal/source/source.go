// Package source defines the metric source capability and its backend
// implementations. A Source returns raw scalar readings for a named
// service; the collector is agnostic to which backend produced them.
// New backends are added by implementing the interface, never by touching
// the collector.
package source

import (
	"context"
	"fmt"

	"github.com/halonen/skywatch/internal/config"
)

// Readings maps canonical reading names (see models.Reading*) to values.
// A backend omits any reading it cannot provide; the collector defaults
// absent readings to zero.
type Readings map[string]float64

// Source reads raw health readings for one service.
type Source interface {
	Name() string
	Read(ctx context.Context, service string) (Readings, error)
}

// New constructs the backend selected by cfg.SourceBackend.
func New(cfg *config.Config) (Source, error) {
	switch cfg.SourceBackend {
	case "prometheus", "":
		return NewPrometheus(cfg.PrometheusURL)
	case "docker":
		return NewDocker(cfg.DockerHost)
	case "kubernetes":
		return NewKubernetes(cfg.Kubeconfig, cfg.InCluster, cfg.KubeNamespace)
	case "local":
		return NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown source_backend %q (use prometheus, docker, kubernetes or local)", cfg.SourceBackend)
	}
}
