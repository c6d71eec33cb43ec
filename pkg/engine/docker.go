package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"armada/pkg/model"
)

// Docker implements Runtime against the local Docker daemon.
type Docker struct {
	cli *client.Client

	// stopTimeout is how long Stop waits before the daemon kills the
	// container, in seconds.
	stopTimeout int
}

// NewDocker connects to the daemon from the environment (DOCKER_HOST etc.)
// with API version negotiation.
func NewDocker() (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}
	return &Docker{cli: cli, stopTimeout: 10}, nil
}

func (d *Docker) CreateAndStart(ctx context.Context, name string, spec Spec) (string, error) {
	cfg := &container.Config{
		Image: spec.Image,
		Env:   spec.Env,
		Tty:   false,
	}
	hostCfg := &container.HostConfig{
		Binds:         spec.Binds,
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if errdefs.IsNotFound(err) {
		// Image not present locally. Pull once and retry; the daemon does
		// its own internal retries beyond that.
		if perr := d.pull(ctx, spec.Image); perr != nil {
			return "", perr
		}
		resp, err = d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	}
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", name, err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("start container %s: %w", name, err)
	}
	return resp.ID, nil
}

func (d *Docker) pull(ctx context.Context, image string) error {
	rd, err := d.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", image, err)
	}
	defer rd.Close()
	// The pull completes when the progress stream drains.
	if _, err := io.Copy(io.Discard, rd); err != nil {
		return fmt.Errorf("pull image %s: %w", image, err)
	}
	return nil
}

func (d *Docker) Stop(ctx context.Context, name string) error {
	err := d.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &d.stopTimeout})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("stop container %s: %w", name, err)
	}
	return nil
}

func (d *Docker) Remove(ctx context.Context, name string) error {
	err := d.cli.ContainerRemove(ctx, name, types.ContainerRemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

func (d *Docker) List(ctx context.Context, namePrefix string) ([]Info, error) {
	opts := types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", namePrefix)),
	}
	containers, err := d.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]Info, 0, len(containers))
	for _, c := range containers {
		// The daemon's name filter matches substrings; re-check the prefix
		// on the canonical name.
		for _, n := range c.Names {
			n = strings.TrimPrefix(n, "/")
			if strings.HasPrefix(n, namePrefix) {
				out = append(out, Info{Name: n, Running: c.State == "running"})
				break
			}
		}
	}
	return out, nil
}

func (d *Docker) InspectStatus(ctx context.Context, name string) (model.ContainerStatus, error) {
	cj, err := d.cli.ContainerInspect(ctx, name)
	if errdefs.IsNotFound(err) {
		return model.ContainerStatus{State: model.StateAbsent}, nil
	}
	if err != nil {
		return model.ContainerStatus{}, fmt.Errorf("inspect container %s: %w", name, err)
	}

	created, _ := time.Parse(time.RFC3339Nano, cj.Created)
	return model.ContainerStatus{State: lifecycleState(cj.State), CreatedAt: created}, nil
}

func lifecycleState(s *types.ContainerState) model.LifecycleState {
	switch {
	case s == nil:
		return model.StateAbsent
	case s.Running:
		return model.StateRunning
	case s.Status == "created" || s.Status == "restarting":
		return model.StateCreating
	case s.Status == "dead" || s.OOMKilled:
		return model.StateFailed
	default:
		return model.StateStopped
	}
}

func (d *Docker) Metrics(ctx context.Context, name string) (model.Metrics, error) {
	resp, err := d.cli.ContainerStats(ctx, name, false)
	if err != nil {
		if errdefs.IsNotFound(err) || errdefs.IsConflict(err) {
			// Absent or not running: unavailable, not an error.
			return model.Metrics{}, nil
		}
		return model.Metrics{}, fmt.Errorf("stats for container %s: %w", name, err)
	}
	defer resp.Body.Close()

	var v types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return model.Metrics{}, fmt.Errorf("decode stats for container %s: %w", name, err)
	}
	if v.PreCPUStats.SystemUsage == 0 {
		// The daemon sends zeroed stats for stopped containers.
		return model.Metrics{}, nil
	}

	cpuDelta := float64(v.CPUStats.CPUUsage.TotalUsage) - float64(v.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(v.CPUStats.SystemUsage) - float64(v.PreCPUStats.SystemUsage)
	online := float64(v.CPUStats.OnlineCPUs)
	if online == 0 {
		online = float64(len(v.CPUStats.CPUUsage.PercpuUsage))
	}
	var pct float64
	if sysDelta > 0 && cpuDelta > 0 {
		pct = cpuDelta / sysDelta * online * 100.0
	}

	return model.Metrics{
		Available:  true,
		CPUPercent: pct,
		MemUsage:   v.MemoryStats.Usage,
		MemLimit:   v.MemoryStats.Limit,
	}, nil
}

func (d *Docker) StreamLogs(ctx context.Context, name string, follow bool) (io.ReadCloser, error) {
	raw, err := d.cli.ContainerLogs(ctx, name, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
	})
	if err != nil {
		return nil, fmt.Errorf("logs for container %s: %w", name, err)
	}

	// The daemon multiplexes stdout/stderr on one stream; demux into a pipe
	// so callers read plain lines. Cancelling ctx tears down raw, which
	// ends the copy and closes the pipe.
	pr, pw := io.Pipe()
	go func() {
		_, cerr := stdcopy.StdCopy(pw, pw, raw)
		raw.Close()
		pw.CloseWithError(cerr)
	}()
	return pr, nil
}

func (d *Docker) TailLogs(ctx context.Context, name string, n int) ([]string, error) {
	raw, err := d.cli.ContainerLogs(ctx, name, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(n),
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("logs for container %s: %w", name, err)
	}
	defer raw.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, raw); err != nil {
		return nil, fmt.Errorf("read logs for container %s: %w", name, err)
	}

	text := strings.TrimRight(buf.String(), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}
