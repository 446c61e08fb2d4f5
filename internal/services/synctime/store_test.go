package synctime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/OrderBox/internal/cache/rediscache"
	"github.com/BearBump/OrderBox/internal/models"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

type fakeShared struct {
	mu   sync.Mutex
	vals models.SyncTimestamps
	fail bool
}

func (f *fakeShared) SyncTimestamps(ctx context.Context) (models.SyncTimestamps, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return models.SyncTimestamps{}, errors.New("shared down")
	}
	return f.vals, nil
}

func (f *fakeShared) SetSyncTimestamp(ctx context.Context, t models.SyncType, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("shared down")
	}
	v := value
	f.vals.Set(t, &v)
	return nil
}

func (f *fakeShared) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func newStore(t *testing.T) (*Store, *miniredis.Miniredis, *fakeShared) {
	mr := miniredis.RunT(t)
	shared := &fakeShared{}
	return New(rediscache.New(mr.Addr()), shared), mr, shared
}

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s, mr, shared := newStore(t)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, got.Products)
	require.Nil(t, got.WebPhotos)

	require.NoError(t, s.Set(ctx, models.SyncTypeProducts, "2024-05-01T10:00:00Z"))
	v, err := mr.Get("orderbox:sync:products")
	require.NoError(t, err)
	require.Equal(t, "2024-05-01T10:00:00Z", v)
	require.Equal(t, "2024-05-01T10:00:00Z", *shared.vals.Products)

	got, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-05-01T10:00:00Z", *got.Products)
	require.Nil(t, got.WebPhotos)
}

func TestStore_SetValidation(t *testing.T) {
	s, _, _ := newStore(t)
	require.ErrorIs(t, s.Set(context.Background(), "orders", "2024-05-01T10:00:00Z"), ErrUnknownType)
	require.ErrorIs(t, s.Set(context.Background(), models.SyncTypeWebPhotos, ""), ErrEmptyTimestamp)
}

func TestStore_SharedFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	s, mr, shared := newStore(t)
	shared.setFail(true)

	require.NoError(t, s.Set(ctx, models.SyncTypeWebPhotos, "2024-05-02T00:00:00Z"))
	require.True(t, mr.Exists("orderbox:sync:webphotos"))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-05-02T00:00:00Z", *got.WebPhotos)
}

func TestStore_LocalFailureStillShared(t *testing.T) {
	ctx := context.Background()
	s, mr, shared := newStore(t)
	mr.Close()

	require.NoError(t, s.Set(ctx, models.SyncTypeProducts, "2024-05-03T00:00:00Z"))
	require.Equal(t, "2024-05-03T00:00:00Z", *shared.vals.Products)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-05-03T00:00:00Z", *got.Products)

	shared.setFail(true)
	require.Error(t, s.Set(ctx, models.SyncTypeProducts, "2024-05-04T00:00:00Z"))
	_, err = s.Get(ctx)
	require.Error(t, err)
}

func TestStore_GetPicksLaterValue(t *testing.T) {
	ctx := context.Background()
	s, mr, shared := newStore(t)

	// другой клиент записал позже, чем наш локальный кэш
	require.NoError(t, mr.Set("orderbox:sync:products", "2024-05-01T00:00:00Z"))
	newer := "2024-06-01T00:00:00Z"
	shared.vals.Products = &newer

	// наш локальный кэш свежее, shared ещё не догнал
	require.NoError(t, mr.Set("orderbox:sync:webphotos", "2024-07-01T00:00:00+02:00"))
	older := "2024-06-30T20:00:00Z"
	shared.vals.WebPhotos = &older

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, newer, *got.Products)
	require.Equal(t, "2024-07-01T00:00:00+02:00", *got.WebPhotos)
}

func TestPick(t *testing.T) {
	a, b, junk := "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", "yesterday"
	require.Equal(t, &b, pick(&a, &b))
	require.Equal(t, &b, pick(&b, &a))
	require.Equal(t, &a, pick(&junk, &a))
	require.Equal(t, &a, pick(&a, nil))
	require.Equal(t, &a, pick(nil, &a))
	require.Nil(t, pick(nil, nil))
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	require.NoError(t, s.Set(ctx, models.SyncTypeProducts, "2024-01-01T00:00:00Z"))

	var calls atomic.Int32
	unsubscribe := s.Subscribe(10*time.Millisecond, func(typ models.SyncType, value string) {
		calls.Add(1)
	})
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, calls.Load(), "baseline must not notify")

	require.NoError(t, s.Set(ctx, models.SyncTypeProducts, "2024-01-02T00:00:00Z"))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	require.NoError(t, s.Set(ctx, models.SyncTypeProducts, "2024-01-03T00:00:00Z"))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}
