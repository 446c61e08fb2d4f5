package retention

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/metrics"
)

const (
	KeptActive  = "active"
	KeptDeleted = "deleted"
)

type ReconcileFix struct {
	OrderID string `json:"orderId"`
	Kept    string `json:"kept"`
}

type ReconcileReport struct {
	Checked int            `json:"checked"`
	Fixed   []ReconcileFix `json:"fixed"`
	Failed  []BulkFailure  `json:"failed"`
}

// Reconcile finds orders that sit in both collections after a crash between
// the two phases of a move and finishes the move that was interrupted.
// An active copy restored after the deletion wins, otherwise the deleted one does.
func (m *Manager) Reconcile(ctx context.Context) (rep ReconcileReport, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRetention(OpReconcile, KindName(err), started) }()

	rep = ReconcileReport{Fixed: []ReconcileFix{}, Failed: []BulkFailure{}}

	deleted, err := m.store.List(ctx, docstore.Deleted, docstore.Query{})
	if err != nil {
		return rep, newError(OpReconcile, "", ErrStore, err)
	}

	for _, d := range deleted {
		rep.Checked++
		id := orderID(d)

		active, err := m.store.Get(ctx, docstore.Active, id)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			rep.Failed = append(rep.Failed, failure(newError(OpReconcile, id, ErrStore, err)))
			continue
		}

		fix := ReconcileFix{OrderID: id, Kept: KeptDeleted}
		if recoveredAfter(active, d) {
			fix.Kept = KeptActive
			err = m.store.Delete(ctx, docstore.Deleted, d.ID)
		} else {
			err = m.store.Delete(ctx, docstore.Active, id)
		}
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			rep.Failed = append(rep.Failed, failure(newError(OpReconcile, id, ErrStore, err)))
			continue
		}

		slog.Info("reconcile: duplicate resolved", "order_id", id, "kept", fix.Kept)
		rep.Fixed = append(rep.Fixed, fix)
	}

	return rep, nil
}

func failure(e *Error) BulkFailure {
	return BulkFailure{ID: e.OrderID, Reason: KindName(e), Message: e.Message()}
}
