package fleet

import (
	"errors"
	"fmt"

	"armada/pkg/model"
)

var (
	// ErrInvalidIdentifier rejects empty or malformed node ids before any
	// side effect happens.
	ErrInvalidIdentifier = errors.New("invalid node identifier")

	// ErrRuntimeUnavailable marks operations that failed because the
	// container runtime could not be reached. Registry state is always
	// re-derived, so this never leaves stale bookkeeping behind.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
)

// ProvisionError reports a provision that failed before the node reached the
// verification step.
type ProvisionError struct {
	ID  string
	Err error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision node %s: %v", e.ID, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// StartupError reports a container that started but never reached the
// running state within the check window. LastLogs carries the tail of the
// container log for diagnosis.
type StartupError struct {
	ID       string
	State    model.LifecycleState
	LastLogs []string
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("node %s: container did not reach running state (observed %s)", e.ID, e.State)
}
