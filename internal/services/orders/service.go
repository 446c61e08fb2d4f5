// Package orders serves the active collection: reads, normalized views and
// in-place edits that do not move the order anywhere.
package orders

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/integrations/photos"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/BearBump/OrderBox/internal/orderview"
	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrInvalidPatch = errors.New("invalid order patch")
)

type Service struct {
	store  docstore.Store
	photos photos.Client
}

// New accepts a nil photos client; views then carry no photo URLs.
func New(store docstore.Store, pc photos.Client) *Service {
	return &Service{store: store, photos: pc}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.store.Get(ctx, docstore.Active, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// ListActive hides archived orders unless includeArchived is set.
func (s *Service) ListActive(ctx context.Context, includeArchived bool) ([]*models.Order, error) {
	out, err := s.store.List(ctx, docstore.Active, docstore.Query{ExcludeArchived: !includeArchived})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return out, nil
}

func (s *Service) View(ctx context.Context, id string) (models.OrderView, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return models.OrderView{}, err
	}
	v := orderview.Normalize(o)
	s.attachPhotos(ctx, &v)
	return v, nil
}

// Update applies a patch in place. Status, labels, archive and star are
// independent of each other and of deletion.
func (s *Service) Update(ctx context.Context, id string, p models.OrderPatch) (*models.Order, error) {
	if p.Status == nil && p.Labels == nil && p.Archived == nil && p.IsStarred == nil {
		return nil, errors.Wrap(ErrInvalidPatch, "nothing to update")
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != nil {
		st, ok := models.ParseOrderStatus(string(*p.Status))
		if !ok || strings.TrimSpace(string(*p.Status)) == "" {
			return nil, errors.Wrapf(ErrInvalidPatch, "unknown status %q", *p.Status)
		}
		o.Status = st
	}
	if p.Labels != nil {
		o.Labels = cleanLabels(*p.Labels)
	}
	if p.Archived != nil {
		o.Archived = *p.Archived
	}
	if p.IsStarred != nil {
		o.IsStarred = *p.IsStarred
	}

	if err := s.store.Put(ctx, docstore.Active, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

func (s *Service) attachPhotos(ctx context.Context, v *models.OrderView) {
	if s.photos == nil {
		return
	}
	for i := range v.Items {
		key := v.Items[i].PhotoKey
		if key == "" {
			continue
		}
		u, err := s.photos.PhotoURL(ctx, key)
		if err != nil {
			if !errors.Is(err, photos.ErrNotFound) {
				slog.Warn("photo lookup failed", "order_id", v.ID, "photo_key", key, "error", err.Error())
			}
			continue
		}
		v.Items[i].PhotoURL = u
	}
}

func cleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, l := range in {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
