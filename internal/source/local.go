package source

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/halonen/skywatch/internal/models"
)

// LocalSource reads host telemetry via gopsutil. It treats the whole host
// as one instance of the named service, which makes it useful for demos
// and single-box deployments where no Prometheus is running. Request-path
// readings do not exist at host level and stay absent.
type LocalSource struct{}

// NewLocal creates a ready-to-use host source.
func NewLocal() *LocalSource {
	return &LocalSource{}
}

func (s *LocalSource) Name() string { return "local" }

func (s *LocalSource) Read(ctx context.Context, service string) (Readings, error) {
	r := Readings{models.ReadingInstanceCount: 1}

	// Short sampling interval keeps a collection cycle fast.
	if pcts, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pcts) > 0 {
		r[models.ReadingCPUUsage] = pcts[0] / 100
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r[models.ReadingMemoryUsage] = float64(vm.Used)
	}

	return r, nil
}
