package model

import "time"

// LifecycleState is the observed state of a node's container. It is never
// stored; every read recomputes it from the runtime's live answer, so the
// runtime stays the single source of truth.
type LifecycleState string

const (
	StateAbsent   LifecycleState = "ABSENT"
	StateCreating LifecycleState = "CREATING"
	StateRunning  LifecycleState = "RUNNING"
	StateStopped  LifecycleState = "STOPPED"
	StateFailed   LifecycleState = "FAILED"
)

// Node binds an operator-supplied identifier to the three resources derived
// from it. All fields are deterministic functions of ID.
type Node struct {
	ID           string `json:"id"`
	ContainerRef string `json:"container_ref"`
	LogPath      string `json:"log_path"`
	ScheduleRef  string `json:"schedule_ref"`
}

// ContainerStatus is the runtime's answer to a status inspection.
// An absent container is a valid status, not an error.
type ContainerStatus struct {
	State     LifecycleState `json:"state"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// Metrics carries a point-in-time resource sample for a running container.
// Available is false when the container is not running or the runtime could
// not produce a sample; the numeric fields are then meaningless.
type Metrics struct {
	Available  bool    `json:"available"`
	CPUPercent float64 `json:"cpu_percent"`
	MemUsage   uint64  `json:"mem_usage"`
	MemLimit   uint64  `json:"mem_limit"`
}

// NodeView is the read-only presentation row for one node: derived paths
// joined with live container status and metrics.
type NodeView struct {
	Node
	State     LifecycleState `json:"state"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	Metrics   Metrics        `json:"metrics"`

	// StatusErr is set when the runtime query behind this row failed.
	// The row still appears in listings with its fields unavailable.
	StatusErr string `json:"status_err,omitempty"`
}
