package retention

import (
	"context"
	"errors"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/models"
)

// findDeleted looks id up by document key first. Older deletions stored the
// order under a fresh document id, so on a miss it scans for originalId.
func (m *Manager) findDeleted(ctx context.Context, id string) (*models.Order, error) {
	o, err := m.store.Get(ctx, docstore.Deleted, id)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	found, err := m.store.List(ctx, docstore.Deleted, docstore.Query{OriginalOrDocID: id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, docstore.ErrNotFound
	}
	return found[0], nil
}
