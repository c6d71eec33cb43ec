package fleet

import (
	"context"
	"log/slog"
	"time"

	"armada/pkg/model"
)

// Batch applies destroy over operator selections of the registry listing.
// Per-node failures are collected into the report; they never abort the
// remaining batch.
type Batch struct {
	reg  *Registry
	ctrl *Controller

	// throttle is the pause between successive operations, so a large batch
	// does not hammer the runtime with back-to-back requests.
	throttle time.Duration

	log *slog.Logger
}

func NewBatch(reg *Registry, ctrl *Controller, throttle time.Duration, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{reg: reg, ctrl: ctrl, throttle: throttle, log: logger}
}

// DestroySelection destroys the nodes at the given 1-based positions of the
// registry enumeration taken at call time. Positions outside the current
// listing are reported as skipped, not treated as fatal.
func (b *Batch) DestroySelection(ctx context.Context, selections []int) (*model.BatchReport, error) {
	ids, err := b.reg.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.BatchReport{}
	performed := 0
	for _, sel := range selections {
		if sel < 1 || sel > len(ids) {
			b.log.Warn("selection out of range", "selection", sel, "fleet_size", len(ids))
			report.Entries = append(report.Entries, model.BatchEntry{
				Selection: sel,
				Skipped:   true,
				Reason:    "selection out of range",
			})
			continue
		}

		if performed > 0 {
			if err := b.pause(ctx); err != nil {
				return report, err
			}
		}
		id := ids[sel-1]
		report.Entries = append(report.Entries, b.destroyOne(ctx, sel, id))
		performed++
	}
	return report, nil
}

// DestroyAll wipes every node currently known to the registry.
func (b *Batch) DestroyAll(ctx context.Context) (*model.BatchReport, error) {
	ids, err := b.reg.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.BatchReport{}
	for i, id := range ids {
		if i > 0 {
			if err := b.pause(ctx); err != nil {
				return report, err
			}
		}
		report.Entries = append(report.Entries, b.destroyOne(ctx, i+1, id))
	}
	return report, nil
}

func (b *Batch) destroyOne(ctx context.Context, sel int, id string) model.BatchEntry {
	entry := model.BatchEntry{Selection: sel, ID: id}
	result, err := b.ctrl.Destroy(ctx, id)
	if err != nil {
		// Destroy only errors before attempting any removal.
		entry.Skipped = true
		entry.Reason = err.Error()
		return entry
	}
	entry.Result = result
	return entry
}

func (b *Batch) pause(ctx context.Context) error {
	if b.throttle <= 0 {
		return nil
	}
	select {
	case <-time.After(b.throttle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
