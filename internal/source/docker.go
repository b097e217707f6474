package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/halonen/skywatch/internal/models"
)

// DockerSource reads readings for a container whose name matches the
// service. Request-path readings do not exist for plain containers and
// stay absent.
type DockerSource struct {
	cli *client.Client
}

// NewDocker connects to the Docker daemon at host, e.g.
// "unix:///var/run/docker.sock" or "tcp://remote:2375".
func NewDocker(host string) (*DockerSource, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerSource{cli: cli}, nil
}

func (s *DockerSource) Name() string { return "docker" }

func (s *DockerSource) Read(ctx context.Context, service string) (Readings, error) {
	list, err := s.cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", service)),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no running container named %q", service)
	}
	id := list[0].ID

	r := Readings{models.ReadingInstanceCount: 1}

	if inspect, err := s.cli.ContainerInspect(ctx, id); err == nil && inspect.ContainerJSONBase != nil {
		r[models.ReadingRestartCount] = float64(inspect.RestartCount)
	}

	stats, err := s.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return r, nil
	}
	defer stats.Body.Close()

	var st container.StatsResponse
	if err := json.NewDecoder(stats.Body).Decode(&st); err != nil {
		return r, nil
	}

	if cpu, ok := cpuFraction(&st); ok {
		r[models.ReadingCPUUsage] = cpu
	}
	r[models.ReadingMemoryUsage] = float64(st.MemoryStats.Usage)

	return r, nil
}

// cpuFraction converts the two-sample stats deltas into a fraction of total
// host CPU time, the same formula `docker stats` uses divided by 100.
func cpuFraction(st *container.StatsResponse) (float64, bool) {
	cpuDelta := float64(st.CPUStats.CPUUsage.TotalUsage) - float64(st.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(st.CPUStats.SystemUsage) - float64(st.PreCPUStats.SystemUsage)
	if sysDelta <= 0 || cpuDelta < 0 {
		return 0, false
	}
	cpus := float64(st.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = float64(len(st.CPUStats.CPUUsage.PercpuUsage))
	}
	if cpus == 0 {
		cpus = 1
	}
	return cpuDelta / sysDelta * cpus, true
}
