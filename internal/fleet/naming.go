package fleet

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"armada/pkg/model"
)

// ContainerPrefix is the naming convention that marks a container as
// fleet-managed. The registry recovers node ids by stripping it.
const ContainerPrefix = "fleet-node-"

// idPattern bounds valid node ids. No separators that could escape a path
// component, no leading punctuation, no whitespace.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Resolver derives every per-node resource name from the node id. The id is
// embedded verbatim in each name, so distinct ids can never collide.
type Resolver struct {
	// LogDir holds one persisted log file per node.
	LogDir string

	// CronDir holds one recurring-job fragment per node.
	CronDir string
}

// Resolve maps id to the node's container name, log path and cron entry
// path. It is pure: same id, same triple, no I/O.
func (r Resolver) Resolve(id string) (model.Node, error) {
	if !idPattern.MatchString(id) {
		return model.Node{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return model.Node{
		ID:           id,
		ContainerRef: ContainerPrefix + id,
		LogPath:      filepath.Join(r.LogDir, id+".log"),
		ScheduleRef:  filepath.Join(r.CronDir, ContainerPrefix+id),
	}, nil
}

// ParseContainerRef recovers the node id from a container name produced by
// Resolve. ok is false for names outside the fleet convention, so listings
// can skip foreign containers instead of failing.
func ParseContainerRef(ref string) (id string, ok bool) {
	id, found := strings.CutPrefix(ref, ContainerPrefix)
	if !found || !idPattern.MatchString(id) {
		return "", false
	}
	return id, true
}
