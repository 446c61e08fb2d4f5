package retention

import (
	"context"
	"errors"
	"sync"

	"github.com/BearBump/OrderBox/internal/broker/messages"
	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/docstore/memdocs"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/stretchr/testify/mock"
)

var errDisk = errors.New("disk on fire")

// flakyStore fails selected calls; the key is "<method>:<collection>".
type flakyStore struct {
	*memdocs.Store

	mu    sync.Mutex
	fails map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memdocs.New(), fails: map[string]int{}}
}

// failNext makes the next n calls of method on coll fail.
func (s *flakyStore) failNext(method string, coll docstore.Collection, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[method+":"+string(coll)] = n
}

func (s *flakyStore) shouldFail(method string, coll docstore.Collection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := method + ":" + string(coll)
	if s.fails[k] > 0 {
		s.fails[k]--
		return true
	}
	return false
}

func (s *flakyStore) Get(ctx context.Context, coll docstore.Collection, id string) (*models.Order, error) {
	if s.shouldFail("get", coll) {
		return nil, errDisk
	}
	return s.Store.Get(ctx, coll, id)
}

func (s *flakyStore) Put(ctx context.Context, coll docstore.Collection, o *models.Order) error {
	if s.shouldFail("put", coll) {
		return errDisk
	}
	return s.Store.Put(ctx, coll, o)
}

func (s *flakyStore) Delete(ctx context.Context, coll docstore.Collection, id string) error {
	if s.shouldFail("delete", coll) {
		return errDisk
	}
	return s.Store.Delete(ctx, coll, id)
}

// txStore adds an all-or-nothing Move on top of memdocs.
type txStore struct {
	*memdocs.Store
	moves int
}

func (s *txStore) Move(ctx context.Context, src docstore.Collection, srcID string, dst docstore.Collection, o *models.Order) error {
	if _, err := s.Store.Get(ctx, src, srcID); err != nil {
		return err
	}
	if err := s.Store.Put(ctx, dst, o); err != nil {
		return err
	}
	s.moves++
	return s.Store.Delete(ctx, src, srcID)
}

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) PublishLifecycle(ctx context.Context, ev messages.OrderLifecycle) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func action(a messages.LifecycleAction, id string) interface{} {
	return mock.MatchedBy(func(ev messages.OrderLifecycle) bool {
		return ev.Action == a && ev.OrderID == id && ev.EventID != ""
	})
}
