// Package sweeper purges deleted orders whose retention window has elapsed.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/OrderBox/internal/metrics"
	"github.com/BearBump/OrderBox/internal/services/retention"
)

type Manager interface {
	ListEligibleForPurge(ctx context.Context, now time.Time) ([]string, error)
	PurgeExpired(ctx context.Context, id string, now time.Time) error
	Reconcile(ctx context.Context) (retention.ReconcileReport, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, int64, error)
}

type Sweeper struct {
	mgr Manager
	rl  RateLimiter
	now func() time.Time

	interval    time.Duration
	batchSize   int
	concurrency int
	reconcile   bool

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalEligible       atomic.Int64
	totalPurged         atomic.Int64
	totalSkipped        atomic.Int64
	totalErrors         atomic.Int64
	totalReconciled     atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

// New accepts a nil rate limiter.
func New(mgr Manager, rl RateLimiter) *Sweeper {
	return &Sweeper{
		mgr:               mgr,
		rl:                rl,
		now:               time.Now,
		interval:          10 * time.Minute,
		batchSize:         500,
		concurrency:       4,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) WithSettings(interval time.Duration, batchSize, concurrency int) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	return s
}

// WithReconcile makes every cycle start with a duplicate check.
func (s *Sweeper) WithReconcile(on bool) *Sweeper {
	s.reconcile = on
	return s
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	if now != nil {
		s.now = now
	}
	return s
}

// Trigger forces an immediate sweep (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	TotalEligible   int64      `json:"totalEligible"`
	TotalPurged     int64      `json:"totalPurged"`
	TotalSkipped    int64      `json:"totalSkipped"`
	TotalErrors     int64      `json:"totalErrors"`
	TotalReconciled int64      `json:"totalReconciled"`
	InFlight        int64      `json:"inFlight"`
	LastError       string     `json:"lastError,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalEligible:   s.totalEligible.Load(),
		TotalPurged:     s.totalPurged.Load(),
		TotalSkipped:    s.totalSkipped.Load(),
		TotalErrors:     s.totalErrors.Load(),
		TotalReconciled: s.totalReconciled.Load(),
		InFlight:        s.inFlight.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	now := s.now().UTC()
	s.lastCycleUnixNano.Store(now.UnixNano())
	defer metrics.SweeperCycles.Inc()

	if s.reconcile {
		rep, err := s.mgr.Reconcile(ctx)
		if err != nil {
			s.recordError(err)
			slog.Error("reconcile", "error", err.Error())
		} else {
			s.totalReconciled.Add(int64(len(rep.Fixed)))
			for _, f := range rep.Failed {
				slog.Warn("reconcile failed", "order_id", f.ID, "reason", f.Reason)
			}
		}
	}

	ids, err := s.mgr.ListEligibleForPurge(ctx, now)
	if err != nil {
		s.recordError(err)
		slog.Error("list eligible for purge", "error", err.Error())
		return
	}
	if len(ids) > s.batchSize {
		ids = ids[:s.batchSize]
	}
	s.totalEligible.Add(int64(len(ids)))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		sem <- struct{}{}
		wg.Add(1)
		s.inFlight.Add(1)
		go func() {
			defer func() {
				s.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			outcome := s.processOne(ctx, id, now)
			metrics.SweeperPurged.WithLabelValues(outcome).Inc()
		}()
	}
	wg.Wait()
}

// processOne returns the outcome label.
func (s *Sweeper) processOne(ctx context.Context, id string, now time.Time) string {
	if s.rl != nil {
		minuteKey := fmt.Sprintf("rl:purge:%s", now.Format("200601021504"))
		allowed, n, err := s.rl.Allow(ctx, minuteKey)
		if err != nil {
			s.recordError(err)
			slog.Error("purge rate limit", "order_id", id, "error", err.Error())
			return "error"
		}
		if !allowed {
			// Остальное доберём в следующем цикле.
			s.totalSkipped.Add(1)
			slog.Warn("purge rate limit exceeded", "order_id", id, "count", n)
			return "skipped"
		}
	}

	err := s.mgr.PurgeExpired(ctx, id, now)
	switch {
	case err == nil:
		s.totalPurged.Add(1)
		slog.Info("order purged after retention", "order_id", id)
		return "purged"
	case errors.Is(err, retention.ErrNotFound):
		// уже удалили вручную между выборкой и purge
		return "gone"
	case errors.Is(err, retention.ErrNotEligible):
		// восстановили и удалили заново, срок пошёл с начала
		s.totalSkipped.Add(1)
		slog.Info("purge skipped, retention restarted", "order_id", id)
		return "not_eligible"
	default:
		s.recordError(err)
		slog.Error("purge order", "order_id", id, "error", retention.Message(err))
		return "error"
	}
}

func (s *Sweeper) recordError(err error) {
	s.totalErrors.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
