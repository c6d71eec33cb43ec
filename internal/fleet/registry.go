package fleet

import (
	"context"
	"fmt"

	"armada/pkg/engine"
)

// Registry enumerates the fleet from the runtime's live container listing.
// There is no in-process node table: every call re-queries the runtime, so
// registry and runtime state cannot diverge even when containers are removed
// out-of-band.
type Registry struct {
	rt engine.Runtime
}

func NewRegistry(rt engine.Runtime) *Registry {
	return &Registry{rt: rt}
}

// ListAll returns every node id currently backed by a container, running or
// not, in the runtime's listing order.
func (r *Registry) ListAll(ctx context.Context) ([]string, error) {
	return r.list(ctx, false)
}

// ListRunning returns the ids whose container is currently running.
func (r *Registry) ListRunning(ctx context.Context) ([]string, error) {
	return r.list(ctx, true)
}

func (r *Registry) list(ctx context.Context, runningOnly bool) ([]string, error) {
	infos, err := r.rt.List(ctx, ContainerPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}

	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		id, ok := ParseContainerRef(info.Name)
		if !ok {
			// A foreign container slipped through the prefix filter.
			continue
		}
		if runningOnly && !info.Running {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
