package fleet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armada/pkg/model"
)

func newTestAggregator(t *testing.T, rt *fakeRuntime) *Aggregator {
	t.Helper()
	ctrl, _ := newTestController(t, rt, newFakeScheduler())
	return NewAggregator(NewRegistry(rt), ctrl, discardLogger())
}

func TestListStatusesKeepsEnumerationOrder(t *testing.T) {
	rt := newFakeRuntime()
	rt.add("fleet-node-carol", true)
	rt.add("fleet-node-alice", false)
	rt.add("fleet-node-bob", true)

	views, err := newTestAggregator(t, rt).ListStatuses(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)

	// First-seen listing order, not sorted by id.
	assert.Equal(t, "carol", views[0].ID)
	assert.Equal(t, "alice", views[1].ID)
	assert.Equal(t, "bob", views[2].ID)

	assert.Equal(t, model.StateRunning, views[0].State)
	assert.Equal(t, model.StateStopped, views[1].State)
	assert.True(t, views[0].Metrics.Available)
	assert.False(t, views[1].Metrics.Available)
}

func TestListStatusesDegradesFailedRowsInsteadOfFailing(t *testing.T) {
	rt := newFakeRuntime()
	rt.add("fleet-node-alice", true)
	rt.add("fleet-node-bob", true)
	rt.add("fleet-node-carol", true)
	rt.inspectErr["fleet-node-bob"] = errors.New("daemon hiccup")

	views, err := newTestAggregator(t, rt).ListStatuses(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Empty(t, views[0].StatusErr)
	assert.NotEmpty(t, views[1].StatusErr)
	assert.Equal(t, "bob", views[1].ID)
	assert.Empty(t, views[2].StatusErr)
}

func TestListStatusesDegradesMetricsOnly(t *testing.T) {
	rt := newFakeRuntime()
	rt.add("fleet-node-alice", true)
	rt.metricsErr["fleet-node-alice"] = errors.New("stats stream broken")

	views, err := newTestAggregator(t, rt).ListStatuses(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)

	// State survives even when the metrics sample failed.
	assert.Equal(t, model.StateRunning, views[0].State)
	assert.False(t, views[0].Metrics.Available)
	assert.NotEmpty(t, views[0].StatusErr)
}

func TestListStatusesEmptyFleet(t *testing.T) {
	views, err := newTestAggregator(t, newFakeRuntime()).ListStatuses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, views)
}
