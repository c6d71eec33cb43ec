package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"armada/pkg/cron"
	"armada/pkg/engine"
	"armada/pkg/model"
)

// containerLogPath is where the worker process inside the container writes
// its log; provision binds the node's host log file onto it.
const containerLogPath = "/var/log/node.log"

// Options carries the controller's tunables. The zero value is not usable;
// build it from config defaults.
type Options struct {
	// Image is the worker container image every node runs.
	Image string

	// EnvVar is the environment variable name carrying the node id into
	// the container.
	EnvVar string

	// CronExpr schedules the periodic log cleanup job.
	CronExpr string

	// VerifyRetries and VerifyInterval bound the post-start check window.
	VerifyRetries  int
	VerifyInterval time.Duration

	// LogTail is how many trailing log lines a startup failure surfaces.
	LogTail int
}

// Controller is the per-node lifecycle state machine. It owns no state of
// its own: the container runtime, the filesystem and the cron directory are
// the three sources of truth it composes.
type Controller struct {
	rt      engine.Runtime
	sched   cron.Scheduler
	resolve Resolver
	opts    Options
	log     *slog.Logger
}

func NewController(rt engine.Runtime, sched cron.Scheduler, resolve Resolver, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.VerifyRetries <= 0 {
		opts.VerifyRetries = 5
	}
	if opts.VerifyInterval <= 0 {
		opts.VerifyInterval = time.Second
	}
	if opts.LogTail <= 0 {
		opts.LogTail = 20
	}
	return &Controller{rt: rt, sched: sched, resolve: resolve, opts: opts, log: logger}
}

// Provision brings a node from absent to running: supersede any stale
// container under the same derived name, pre-create the log file, start the
// container with the node's identity in the environment, install the cleanup
// schedule, then verify the container actually reached the running state.
//
// Provision is re-entrant. Calling it again for the same id replaces the
// existing instance; there is never more than one container per id.
func (c *Controller) Provision(ctx context.Context, id string) (*model.ProvisionResult, error) {
	node, err := c.resolve.Resolve(id)
	if err != nil {
		return nil, err
	}

	status, err := c.rt.InspectStatus(ctx, node.ContainerRef)
	if err != nil {
		return nil, &ProvisionError{ID: id, Err: err}
	}
	superseded := status.State != model.StateAbsent
	if superseded {
		c.log.Warn("superseding existing container",
			"node", id, "container", node.ContainerRef, "state", string(status.State))
		if err := c.rt.Remove(ctx, node.ContainerRef); err != nil {
			return nil, &ProvisionError{ID: id, Err: err}
		}
	}

	if err := ensureLogFile(node.LogPath); err != nil {
		return nil, &ProvisionError{ID: id, Err: err}
	}

	spec := engine.Spec{
		Image: c.opts.Image,
		Env:   []string{c.opts.EnvVar + "=" + id},
		Binds: []string{node.LogPath + ":" + containerLogPath},
	}
	containerID, err := c.rt.CreateAndStart(ctx, node.ContainerRef, spec)
	if err != nil {
		return nil, &ProvisionError{ID: id, Err: err}
	}

	if err := c.sched.Install(node.ScheduleRef, c.opts.CronExpr, "rm -f "+node.LogPath); err != nil {
		// The container is already up; leave it for destroy's best-effort
		// cleanup rather than rolling back.
		return nil, &ProvisionError{ID: id, Err: err}
	}

	if err := c.verifyRunning(ctx, node); err != nil {
		return nil, err
	}

	c.log.Info("node provisioned", "node", id, "container", node.ContainerRef)
	return &model.ProvisionResult{Node: node, ContainerID: containerID, Superseded: superseded}, nil
}

func (c *Controller) verifyRunning(ctx context.Context, node model.Node) error {
	observed := model.StateFailed
	for i := 0; i < c.opts.VerifyRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.opts.VerifyInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		status, err := c.rt.InspectStatus(ctx, node.ContainerRef)
		if err != nil {
			continue
		}
		if status.State == model.StateRunning {
			return nil
		}
		observed = status.State
	}

	tail, err := c.rt.TailLogs(ctx, node.ContainerRef, c.opts.LogTail)
	if err != nil {
		c.log.Warn("could not fetch startup logs", "node", node.ID, "error", err)
	}
	return &StartupError{ID: node.ID, State: observed, LastLogs: tail}
}

// Stop stops the node's container without removing anything.
func (c *Controller) Stop(ctx context.Context, id string) error {
	node, err := c.resolve.Resolve(id)
	if err != nil {
		return err
	}
	if err := c.rt.Stop(ctx, node.ContainerRef); err != nil {
		return fmt.Errorf("stop node %s: %w", id, err)
	}
	c.log.Info("node stopped", "node", id)
	return nil
}

// Destroy removes the node's container, log file and cron entry. The three
// removals are attempted independently: a failure in one never prevents the
// others, and the result reports each outcome. Destroying an absent or
// half-destroyed node is a success for every artifact already gone.
func (c *Controller) Destroy(ctx context.Context, id string) (*model.DestroyResult, error) {
	node, err := c.resolve.Resolve(id)
	if err != nil {
		return nil, err
	}

	result := &model.DestroyResult{
		ID:        id,
		Container: artifactResult(model.ArtifactContainer, c.rt.Remove(ctx, node.ContainerRef)),
		Log:       artifactResult(model.ArtifactLog, removeFile(node.LogPath)),
		Schedule:  artifactResult(model.ArtifactSchedule, c.sched.Remove(node.ScheduleRef)),
	}

	if result.HasErrors() {
		c.log.Warn("partial cleanup", "node", id, "failed", result.Failed())
	} else {
		c.log.Info("node destroyed", "node", id)
	}
	return result, nil
}

// Status joins live container status and metrics with the node's derived
// paths. It never mutates anything; runtime query failures degrade the view
// instead of erroring.
func (c *Controller) Status(ctx context.Context, id string) (model.NodeView, error) {
	node, err := c.resolve.Resolve(id)
	if err != nil {
		return model.NodeView{}, err
	}

	view := model.NodeView{Node: node, State: model.StateAbsent}
	status, err := c.rt.InspectStatus(ctx, node.ContainerRef)
	if err != nil {
		view.StatusErr = err.Error()
		return view, nil
	}
	view.State = status.State
	view.CreatedAt = status.CreatedAt

	if status.State == model.StateRunning {
		metrics, err := c.rt.Metrics(ctx, node.ContainerRef)
		if err != nil {
			view.StatusErr = err.Error()
		} else {
			view.Metrics = metrics
		}
	}
	return view, nil
}

// Logs opens the node's log stream. With follow set the stream is unbounded
// and ends when ctx is cancelled; the caller closes the reader.
func (c *Controller) Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	node, err := c.resolve.Resolve(id)
	if err != nil {
		return nil, err
	}
	return c.rt.StreamLogs(ctx, node.ContainerRef, follow)
}

func artifactResult(a model.Artifact, err error) model.ArtifactResult {
	return model.ArtifactResult{Artifact: a, Removed: err == nil, Err: err}
}

func ensureLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	return f.Close()
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove log file: %w", err)
	}
	return nil
}
