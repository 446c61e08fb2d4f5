package synctime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/OrderBox/internal/metrics"
	"github.com/BearBump/OrderBox/internal/models"
)

const DefaultInterval = 2 * time.Second

type Source interface {
	Get(ctx context.Context) (models.SyncTimestamps, error)
}

// statusSource can tell a full read from one served without the shared store.
type statusSource interface {
	getWithStatus(ctx context.Context) (models.SyncTimestamps, bool, error)
}

// Watcher polls a Source and calls onChange once for every distinct new
// value of each sync type. The first successful read is only remembered.
type Watcher struct {
	src      Source
	interval time.Duration
	onChange func(t models.SyncType, value string)

	mu       sync.Mutex
	baseline map[models.SyncType]*string
	primed   bool

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func NewWatcher(src Source, interval time.Duration, onChange func(t models.SyncType, value string)) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		src:      src,
		interval: interval,
		onChange: onChange,
		baseline: map[models.SyncType]*string{},
		done:     make(chan struct{}),
	}
}

// Start reads the baseline and begins polling in the background.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.poll(ctx)
	go w.run(ctx)
}

// Stop cancels polling and waits for the loop to exit. Safe to call twice.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel == nil {
			close(w.done)
			return
		}
		w.cancel()
		<-w.done
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	var (
		cur      models.SyncTimestamps
		complete = true
		err      error
	)
	if ss, ok := w.src.(statusSource); ok {
		cur, complete, err = ss.getWithStatus(ctx)
	} else {
		cur, err = w.src.Get(ctx)
	}
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("sync timestamps poll failed", "error", err.Error())
		}
		return
	}
	// Без общего хранилища видны только свои локальные метки: базу не трогаем,
	// иначе после восстановления получим ложные изменения.
	if !complete {
		slog.Debug("sync timestamps poll degraded, baseline kept")
		return
	}

	w.mu.Lock()
	changed := make([]models.SyncType, 0, len(models.SyncTypes))
	for _, t := range models.SyncTypes {
		v := cur.Get(t)
		if !advances(w.baseline[t], v) {
			continue
		}
		w.baseline[t] = v
		if w.primed {
			changed = append(changed, t)
		}
	}
	w.primed = true
	w.mu.Unlock()

	for _, t := range changed {
		metrics.SyncChanges.WithLabelValues(string(t)).Inc()
		if w.onChange != nil {
			w.onChange(t, *cur.Get(t))
		}
	}
}

// advances reports whether next should replace the baseline value: never to
// nil, never to the same value, never back to an earlier RFC3339 time.
func advances(base, next *string) bool {
	if next == nil || sameValue(base, next) {
		return false
	}
	if base == nil {
		return true
	}
	bt, berr := time.Parse(time.RFC3339Nano, *base)
	nt, nerr := time.Parse(time.RFC3339Nano, *next)
	if berr == nil && nerr == nil && nt.Before(bt) {
		return false
	}
	return true
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
