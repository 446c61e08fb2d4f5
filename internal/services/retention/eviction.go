package retention

import (
	"context"
	"time"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/models"
)

// EligibleForPurge reports whether a deleted order has outlived its
// retention window. Records with neither retentionDate nor deletedAt are
// never eligible.
func EligibleForPurge(o *models.Order, now time.Time) bool {
	rd, ok := o.EffectiveRetentionDate()
	if !ok {
		return false
	}
	return !now.Before(rd)
}

// ListEligibleForPurge returns document ids of deleted orders whose
// retention elapsed at now, in store order.
func (m *Manager) ListEligibleForPurge(ctx context.Context, now time.Time) ([]string, error) {
	all, err := m.store.List(ctx, docstore.Deleted, docstore.Query{})
	if err != nil {
		return nil, newError("list", "", ErrStore, err)
	}
	ids := make([]string, 0)
	for _, o := range all {
		if EligibleForPurge(o, now) {
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}
