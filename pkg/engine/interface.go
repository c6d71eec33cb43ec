package engine

import (
	"context"
	"io"

	"armada/pkg/model"
)

// Spec describes the container to create for a node.
type Spec struct {
	// Image is the container image reference, e.g. "fleet-worker:latest".
	Image string

	// Env entries in "KEY=value" form. The node identity travels here.
	Env []string

	// Binds in Docker's "host:container" form.
	Binds []string
}

// Info is one entry from a prefix listing.
type Info struct {
	Name    string
	Running bool
}

// Runtime is the boundary to the container engine. Anything that implements
// this interface can back the fleet; the tests inject a fake.
//
// Contracts every implementation must honor:
//   - Remove on an absent container is a no-op success.
//   - InspectStatus on an absent container returns StateAbsent, not an error.
//   - Metrics on a non-running container returns the unavailable sentinel
//     (model.Metrics zero value) rather than failing.
type Runtime interface {
	// CreateAndStart creates a container under the given name and starts
	// it detached. It returns the engine's container ID.
	CreateAndStart(ctx context.Context, name string, spec Spec) (string, error)

	Stop(ctx context.Context, name string) error

	Remove(ctx context.Context, name string) error

	// List enumerates containers (running or not) whose name starts with
	// namePrefix, in the engine's listing order.
	List(ctx context.Context, namePrefix string) ([]Info, error)

	InspectStatus(ctx context.Context, name string) (model.ContainerStatus, error)

	Metrics(ctx context.Context, name string) (model.Metrics, error)

	// StreamLogs returns a demultiplexed stdout+stderr stream. With follow
	// set the stream is unbounded and ends when ctx is cancelled.
	StreamLogs(ctx context.Context, name string, follow bool) (io.ReadCloser, error)

	// TailLogs returns up to n trailing log lines. An absent container
	// yields an empty tail, not an error.
	TailLogs(ctx context.Context, name string, n int) ([]string, error)
}
