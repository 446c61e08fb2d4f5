// Package memdocs is an in-process docstore.Store for local runs and tests.
package memdocs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/pkg/errors"
)

// Store keeps documents JSON-encoded so callers never share memory with it,
// the same way they would not with a real database.
type Store struct {
	mu   sync.RWMutex
	data map[docstore.Collection]map[string][]byte
}

func New() *Store {
	return &Store{data: map[docstore.Collection]map[string][]byte{}}
}

func (s *Store) Get(ctx context.Context, coll docstore.Collection, id string) (*models.Order, error) {
	s.mu.RLock()
	b, ok := s.data[coll][id]
	s.mu.RUnlock()
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return decode(b)
}

func (s *Store) List(ctx context.Context, coll docstore.Collection, q docstore.Query) ([]*models.Order, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.data[coll]))
	for id := range s.data[coll] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raw := make([][]byte, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, s.data[coll][id])
	}
	s.mu.RUnlock()

	out := make([]*models.Order, 0, len(raw))
	for i, b := range raw {
		o, err := decode(b)
		if err != nil {
			slog.Warn("skip undecodable order document", "collection", string(coll), "id", ids[i], "error", err.Error())
			continue
		}
		if !q.Matches(o) {
			continue
		}
		out = append(out, o)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, coll docstore.Collection, o *models.Order) error {
	if o.ID == "" {
		return errors.New("memdocs put: empty id")
	}
	b, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "memdocs encode")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[coll] == nil {
		s.data[coll] = map[string][]byte{}
	}
	s.data[coll][o.ID] = b
	return nil
}

func (s *Store) Delete(ctx context.Context, coll docstore.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[coll][id]; !ok {
		return docstore.ErrNotFound
	}
	delete(s.data[coll], id)
	return nil
}

// Len: сколько документов в коллекции (для тестов и /stats).
func (s *Store) Len(coll docstore.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[coll])
}

func decode(b []byte) (*models.Order, error) {
	var o models.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, errors.Wrap(err, "memdocs decode")
	}
	return &o, nil
}
