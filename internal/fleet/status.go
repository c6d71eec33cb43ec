package fleet

import (
	"context"
	"log/slog"

	"armada/pkg/model"
)

// Aggregator builds the fleet-wide status listing.
type Aggregator struct {
	reg  *Registry
	ctrl *Controller
	log  *slog.Logger
}

func NewAggregator(reg *Registry, ctrl *Controller, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{reg: reg, ctrl: ctrl, log: logger}
}

// ListStatuses returns one view per registered node, in the registry's
// enumeration order. A node whose individual runtime query fails keeps its
// row with the fields marked unavailable; only a failed enumeration fails
// the listing as a whole.
func (a *Aggregator) ListStatuses(ctx context.Context) ([]model.NodeView, error) {
	ids, err := a.reg.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]model.NodeView, 0, len(ids))
	for _, id := range ids {
		view, err := a.ctrl.Status(ctx, id)
		if err != nil {
			// Ids from the registry already parsed, so this is a per-node
			// query failure. Keep the row degraded.
			a.log.Warn("status query failed", "node", id, "error", err)
			view = model.NodeView{Node: model.Node{ID: id}, StatusErr: err.Error()}
		}
		views = append(views, view)
	}
	return views, nil
}
