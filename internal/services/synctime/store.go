// Package synctime keeps the "last synced at" marks for the catalog feeds
// and lets readers poll them for changes.
package synctime

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/OrderBox/internal/cache"
	"github.com/BearBump/OrderBox/internal/metrics"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/pkg/errors"
)

var (
	ErrUnknownType    = errors.New("unknown sync type")
	ErrEmptyTimestamp = errors.New("timestamp is required")
)

const keyPrefix = "orderbox:sync:"

// SharedStore is the durable copy every client can see.
type SharedStore interface {
	SyncTimestamps(ctx context.Context) (models.SyncTimestamps, error)
	SetSyncTimestamp(ctx context.Context, t models.SyncType, value string) error
}

type Store struct {
	local  cache.BytesCache
	shared SharedStore
}

// New accepts a nil local cache or a nil shared store; at least one must be set.
func New(local cache.BytesCache, shared SharedStore) *Store {
	return &Store{local: local, shared: shared}
}

// Set writes the timestamp to both the local cache and the shared store.
// It succeeds if either write succeeds; a shared failure never undoes the
// local write. The timestamp comes from the writer and is stored verbatim.
func (s *Store) Set(ctx context.Context, t models.SyncType, timestamp string) error {
	if !t.Valid() {
		return errors.Wrapf(ErrUnknownType, "%q", t)
	}
	if timestamp == "" {
		return ErrEmptyTimestamp
	}

	localErr := errors.New("no local cache")
	if s.local != nil {
		localErr = s.local.Set(ctx, keyPrefix+string(t), []byte(timestamp), 0)
		observeSet(t, "local", localErr)
	}

	sharedErr := errors.New("no shared store")
	if s.shared != nil {
		sharedErr = s.shared.SetSyncTimestamp(ctx, t, timestamp)
		observeSet(t, "shared", sharedErr)
	}

	switch {
	case localErr != nil && sharedErr != nil:
		return errors.Errorf("set sync timestamp %s: local: %v; shared: %v", t, localErr, sharedErr)
	case sharedErr != nil:
		slog.Warn("sync timestamp not shared, other clients will not see it yet", "type", string(t), "error", sharedErr.Error())
	case localErr != nil:
		slog.Warn("sync timestamp local cache write failed", "type", string(t), "error", localErr.Error())
	}
	return nil
}

// Get returns the current timestamps. Per field the later of the local and
// shared values wins when both parse as RFC3339; otherwise the shared one.
func (s *Store) Get(ctx context.Context) (models.SyncTimestamps, error) {
	out, _, err := s.getWithStatus(ctx)
	return out, err
}

// getWithStatus is Get plus complete=false when a configured shared store
// could not be read and the result holds local values only.
func (s *Store) getWithStatus(ctx context.Context) (out models.SyncTimestamps, complete bool, err error) {
	var (
		shared    models.SyncTimestamps
		sharedErr = errors.New("no shared store")
	)
	if s.shared != nil {
		shared, sharedErr = s.shared.SyncTimestamps(ctx)
	}

	var (
		local    models.SyncTimestamps
		localErr = errors.New("no local cache")
	)
	if s.local != nil {
		local, localErr = s.readLocal(ctx)
	}

	if sharedErr != nil && localErr != nil {
		return models.SyncTimestamps{}, false, errors.Errorf("get sync timestamps: local: %v; shared: %v", localErr, sharedErr)
	}

	for _, t := range models.SyncTypes {
		out.Set(t, pick(local.Get(t), shared.Get(t)))
	}
	return out, s.shared == nil || sharedErr == nil, nil
}

// Subscribe starts a Watcher over this store and returns its stop function.
func (s *Store) Subscribe(interval time.Duration, onChange func(t models.SyncType, value string)) (unsubscribe func()) {
	w := NewWatcher(s, interval, onChange)
	w.Start(context.Background())
	return w.Stop
}

func (s *Store) readLocal(ctx context.Context) (models.SyncTimestamps, error) {
	var out models.SyncTimestamps
	for _, t := range models.SyncTypes {
		b, ok, err := s.local.Get(ctx, keyPrefix+string(t))
		if err != nil {
			return models.SyncTimestamps{}, err
		}
		if ok {
			v := string(b)
			out.Set(t, &v)
		}
	}
	return out, nil
}

func pick(local, shared *string) *string {
	if local == nil {
		return shared
	}
	if shared == nil {
		return local
	}
	lt, lerr := time.Parse(time.RFC3339Nano, *local)
	st, serr := time.Parse(time.RFC3339Nano, *shared)
	if lerr == nil && serr == nil && lt.After(st) {
		return local
	}
	return shared
}

func observeSet(t models.SyncType, target string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SyncSets.WithLabelValues(string(t), target, outcome).Inc()
}
