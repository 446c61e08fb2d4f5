// Package docstore describes the generic document-store primitives the
// order services are composed from.
package docstore

import (
	"context"
	"errors"

	"github.com/BearBump/OrderBox/internal/models"
)

type Collection string

const (
	Active  Collection = "orders"
	Deleted Collection = "deleted_orders"
)

var ErrNotFound = errors.New("document not found")

// Query фильтрует выборку List. Пустой Query возвращает всю коллекцию.
type Query struct {
	// OriginalOrDocID matches documents whose id or originalId equals the value.
	OriginalOrDocID string
	ExcludeArchived bool
	Limit           int
}

// Matches applies the query to a single document; backends that cannot push
// a filter down to the database use it after loading.
func (q Query) Matches(o *models.Order) bool {
	if q.OriginalOrDocID != "" && o.ID != q.OriginalOrDocID && o.OriginalID != q.OriginalOrDocID {
		return false
	}
	if q.ExcludeArchived && o.Archived {
		return false
	}
	return true
}

// Store is implemented by every backend. Get returns ErrNotFound for a missing id.
// Put overwrites the whole document keyed by its ID.
type Store interface {
	Get(ctx context.Context, coll Collection, id string) (*models.Order, error)
	List(ctx context.Context, coll Collection, q Query) ([]*models.Order, error)
	Put(ctx context.Context, coll Collection, o *models.Order) error
	Delete(ctx context.Context, coll Collection, id string) error
}

// Mover is implemented by backends that can move a document between
// collections atomically (write to dst and delete srcID from src in one transaction).
type Mover interface {
	Move(ctx context.Context, src Collection, srcID string, dst Collection, o *models.Order) error
}
