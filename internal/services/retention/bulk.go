package retention

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type BulkFailure struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// BulkResult lists per-id outcomes in input order.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// Err returns nil when every id succeeded.
func (r BulkResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return errors.Wrapf(ErrPartialFailure, "%d of %d failed", len(r.Failed), len(r.Failed)+len(r.Succeeded))
}

func (m *Manager) SoftDeleteBulk(ctx context.Context, ids []string) BulkResult {
	return m.runBulk(ctx, ids, m.SoftDelete)
}

func (m *Manager) RecoverBulk(ctx context.Context, ids []string) BulkResult {
	return m.runBulk(ctx, ids, m.Recover)
}

func (m *Manager) PurgeDeletedBulk(ctx context.Context, ids []string) BulkResult {
	return m.runBulk(ctx, ids, m.PurgeDeleted)
}

// runBulk attempts every id, never stopping on a failure. Repeated ids are
// collapsed so the same order is not worked on twice at once.
func (m *Manager) runBulk(ctx context.Context, ids []string, op func(context.Context, string) error) BulkResult {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	errs := make([]error, len(uniq))
	sem := make(chan struct{}, m.bulkWorkers)
	var wg sync.WaitGroup
	for i, id := range uniq {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			errs[i] = op(ctx, id)
		}()
	}
	wg.Wait()

	res := BulkResult{Succeeded: []string{}, Failed: []BulkFailure{}}
	for i, id := range uniq {
		if errs[i] == nil {
			res.Succeeded = append(res.Succeeded, id)
			continue
		}
		res.Failed = append(res.Failed, BulkFailure{
			ID:      id,
			Reason:  KindName(errs[i]),
			Message: Message(errs[i]),
		})
	}
	return res
}
