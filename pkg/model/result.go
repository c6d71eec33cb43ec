package model

// Artifact names one of the three per-node resources that destroy cleans up.
type Artifact string

const (
	ArtifactContainer Artifact = "container"
	ArtifactLog       Artifact = "log"
	ArtifactSchedule  Artifact = "schedule"
)

// ArtifactResult records the outcome of one removal attempt. Removed is true
// when the artifact is gone afterwards, including the case where it never
// existed.
type ArtifactResult struct {
	Artifact Artifact `json:"artifact"`
	Removed  bool     `json:"removed"`
	Err      error    `json:"-"`
}

// ProvisionResult reports a successful provision.
type ProvisionResult struct {
	Node
	ContainerID string `json:"container_id"`

	// Superseded is true when a stale container with the same derived name
	// was removed to make room for this one.
	Superseded bool `json:"superseded"`
}

// DestroyResult aggregates the three independent removal attempts of a
// destroy. A failed attempt never prevents the others; callers inspect the
// per-artifact outcomes instead of a single error.
type DestroyResult struct {
	ID        string         `json:"id"`
	Container ArtifactResult `json:"container"`
	Log       ArtifactResult `json:"log"`
	Schedule  ArtifactResult `json:"schedule"`
}

// Artifacts returns the three outcomes in fixed order.
func (r *DestroyResult) Artifacts() []ArtifactResult {
	return []ArtifactResult{r.Container, r.Log, r.Schedule}
}

// HasErrors reports whether any removal attempt failed.
func (r *DestroyResult) HasErrors() bool {
	for _, a := range r.Artifacts() {
		if a.Err != nil {
			return true
		}
	}
	return false
}

// Failed lists the artifacts whose removal failed.
func (r *DestroyResult) Failed() []Artifact {
	var out []Artifact
	for _, a := range r.Artifacts() {
		if a.Err != nil {
			out = append(out, a.Artifact)
		}
	}
	return out
}

// BatchEntry is the outcome for one position of a batch selection.
type BatchEntry struct {
	// Selection is the 1-based position the operator picked from the
	// enumerated listing.
	Selection int    `json:"selection"`
	ID        string `json:"id,omitempty"`

	// Skipped marks selections that did not map to a node (out of range)
	// or whose destroy could not even start. Reason says why.
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`

	Result *DestroyResult `json:"result,omitempty"`
}

// BatchReport collects per-entry outcomes of a batch destroy. The batch as a
// whole succeeds even when individual entries fail or are skipped.
type BatchReport struct {
	Entries []BatchEntry `json:"entries"`
}

// Destroyed counts entries whose node was fully cleaned up.
func (r *BatchReport) Destroyed() int {
	n := 0
	for _, e := range r.Entries {
		if !e.Skipped && e.Result != nil && !e.Result.HasErrors() {
			n++
		}
	}
	return n
}

// Skipped counts entries that never reached a destroy attempt.
func (r *BatchReport) Skipped() int {
	n := 0
	for _, e := range r.Entries {
		if e.Skipped {
			n++
		}
	}
	return n
}

// Failed counts entries whose destroy ran but left artifacts behind.
func (r *BatchReport) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if !e.Skipped && e.Result != nil && e.Result.HasErrors() {
			n++
		}
	}
	return n
}
