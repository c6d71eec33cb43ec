package fleet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDerivesAllPaths(t *testing.T) {
	r := Resolver{LogDir: "/var/log/fleet", CronDir: "/etc/cron.d"}

	node, err := r.Resolve("alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", node.ID)
	assert.Equal(t, "fleet-node-alice", node.ContainerRef)
	assert.Equal(t, "/var/log/fleet/alice.log", node.LogPath)
	assert.Equal(t, "/etc/cron.d/fleet-node-alice", node.ScheduleRef)
}

func TestResolveRejectsMalformedIds(t *testing.T) {
	r := Resolver{LogDir: "/var/log/fleet", CronDir: "/etc/cron.d"}

	for _, id := range []string{
		"",
		"   ",
		"a b",
		"a/b",
		"../escape",
		".hidden",
		"-leading",
		"tab\tchar",
	} {
		_, err := r.Resolve(id)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "id %q", id)
	}
}

// Any two distinct valid ids must produce pairwise-distinct resource
// triples; the whole isolation story rests on this.
func TestResolveIsInjective(t *testing.T) {
	r := Resolver{LogDir: "/var/log/fleet", CronDir: "/etc/cron.d"}
	ids := []string{"a", "ab", "a-b", "a.b", "a_b", "a1", "1a", "node-01", "node-010"}

	seen := make(map[string]string)
	for _, id := range ids {
		node, err := r.Resolve(id)
		require.NoError(t, err, "id %q", id)
		for _, ref := range []string{node.ContainerRef, node.LogPath, node.ScheduleRef} {
			if prev, dup := seen[ref]; dup {
				t.Fatalf("ids %q and %q collide on %q", prev, id, ref)
			}
			seen[ref] = id
		}
	}
}

func TestParseContainerRefRoundTrip(t *testing.T) {
	r := Resolver{LogDir: "/tmp", CronDir: "/tmp"}

	node, err := r.Resolve("worker-7")
	require.NoError(t, err)

	id, ok := ParseContainerRef(node.ContainerRef)
	require.True(t, ok)
	assert.Equal(t, "worker-7", id)
}

func TestParseContainerRefRejectsForeignNames(t *testing.T) {
	for _, ref := range []string{
		"postgres",
		"fleet-node-",       // empty id
		"fleet-node--x",     // leading punctuation in id
		"fleetnode-alice",   // wrong prefix
		"xfleet-node-alice", // prefix not at start
	} {
		_, ok := ParseContainerRef(ref)
		assert.False(t, ok, "ref %q", ref)
	}
}

func TestResolveErrorMentionsTheId(t *testing.T) {
	r := Resolver{}
	_, err := r.Resolve("bad id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
	assert.Contains(t, err.Error(), "bad id")
}
