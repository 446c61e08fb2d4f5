// Package retention moves orders between the active and deleted collections
// and decides when a deleted order may be purged for good.
package retention

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BearBump/OrderBox/internal/broker/messages"
	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/metrics"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/BearBump/OrderBox/internal/orderview"
	"github.com/google/uuid"
)

type Publisher interface {
	PublishLifecycle(ctx context.Context, ev messages.OrderLifecycle) error
}

// Manager has no per-id locking: callers must not run two operations on the
// same order id at the same time. Different ids are independent.
type Manager struct {
	store docstore.Store
	pub   Publisher

	now         func() time.Time
	bulkWorkers int
	actor       string
}

func New(store docstore.Store, pub Publisher) *Manager {
	return &Manager{
		store:       store,
		pub:         pub,
		now:         time.Now,
		bulkWorkers: 8,
		actor:       "api",
	}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Manager) WithBulkWorkers(n int) *Manager {
	if n > 0 {
		m.bulkWorkers = n
	}
	return m
}

// WithActor sets the actor recorded in lifecycle events.
func (m *Manager) WithActor(actor string) *Manager {
	if actor != "" {
		m.actor = actor
	}
	return m
}

// SoftDelete moves an active order into the deleted collection with a
// retention envelope. Without a transactional store the deleted copy is
// written first, so a crash leaves a duplicate and never loses the order.
func (m *Manager) SoftDelete(ctx context.Context, id string) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveRetention(OpSoftDelete, KindName(err), started) }()

	if id == "" {
		return newError(OpSoftDelete, id, ErrInvalidID, nil)
	}

	active, err := m.store.Get(ctx, docstore.Active, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return newError(OpSoftDelete, id, ErrNotFound, nil)
	}
	if err != nil {
		return newError(OpSoftDelete, id, ErrStore, err)
	}

	now := m.now().UTC()
	deleted := active.Clone()
	deleted.Status = active.EffectiveStatus()
	deleted.OriginalID = id
	deleted.DeletedAt = &now
	retention := now.Add(models.RetentionPeriod)
	deleted.RetentionDate = &retention

	if mover, ok := m.store.(docstore.Mover); ok {
		err := mover.Move(ctx, docstore.Active, id, docstore.Deleted, deleted)
		if errors.Is(err, docstore.ErrNotFound) {
			return newError(OpSoftDelete, id, ErrNotFound, nil)
		}
		if err != nil {
			return newError(OpSoftDelete, id, ErrStore, err)
		}
		m.publish(ctx, id, messages.ActionSoftDeleted, now)
		return nil
	}

	// Повтор после сбоя между фазами: копия в корзине уже есть, её не трогаем,
	// иначе сдвинем deletedAt и срок хранения.
	existing, err := m.store.Get(ctx, docstore.Deleted, id)
	switch {
	case err == nil && !recoveredAfter(active, existing):
		slog.Info("soft delete: resuming interrupted move", "order_id", id)
	case err == nil || errors.Is(err, docstore.ErrNotFound):
		if err := m.store.Put(ctx, docstore.Deleted, deleted); err != nil {
			return newError(OpSoftDelete, id, ErrStore, err)
		}
	default:
		return newError(OpSoftDelete, id, ErrStore, err)
	}

	if err := m.store.Delete(ctx, docstore.Active, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		slog.Error("soft delete: order left in both collections", "order_id", id, "error", err.Error())
		return newError(OpSoftDelete, id, ErrStore, err)
	}

	m.publish(ctx, id, messages.ActionSoftDeleted, now)
	return nil
}

// Recover moves a deleted order back to the active collection, stripping
// the envelope and stamping restoredAt. id may be the document id or the
// legacy originalId.
func (m *Manager) Recover(ctx context.Context, id string) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveRetention(OpRecover, KindName(err), started) }()

	if id == "" {
		return newError(OpRecover, id, ErrInvalidID, nil)
	}

	deleted, err := m.findDeleted(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		if _, err := m.store.Get(ctx, docstore.Active, id); err == nil {
			return newError(OpRecover, id, ErrAlreadyActive, nil)
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return newError(OpRecover, id, ErrStore, err)
		}
		return newError(OpRecover, id, ErrNotFound, nil)
	}
	if err != nil {
		return newError(OpRecover, id, ErrStore, err)
	}

	targetID := orderID(deleted)
	active, err := m.store.Get(ctx, docstore.Active, targetID)
	switch {
	case err == nil && recoveredAfter(active, deleted):
		// Прошлый recover записал активную копию и упал до удаления из корзины.
		if err := m.store.Delete(ctx, docstore.Deleted, deleted.ID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return newError(OpRecover, id, ErrStore, err)
		}
		m.publish(ctx, targetID, messages.ActionRecovered, m.now().UTC())
		return nil
	case err == nil:
		return newError(OpRecover, id, ErrAlreadyActive, nil)
	case !errors.Is(err, docstore.ErrNotFound):
		return newError(OpRecover, id, ErrStore, err)
	}

	now := m.now().UTC()
	restored := deleted.Clone()
	restored.StripDeletion()
	restored.ID = targetID
	restored.Status = deleted.EffectiveStatus()
	restored.RestoredAt = &now

	if mover, ok := m.store.(docstore.Mover); ok {
		err := mover.Move(ctx, docstore.Deleted, deleted.ID, docstore.Active, restored)
		if errors.Is(err, docstore.ErrNotFound) {
			return newError(OpRecover, id, ErrNotFound, nil)
		}
		if err != nil {
			return newError(OpRecover, id, ErrStore, err)
		}
		m.publish(ctx, targetID, messages.ActionRecovered, now)
		return nil
	}

	if err := m.store.Put(ctx, docstore.Active, restored); err != nil {
		return newError(OpRecover, id, ErrStore, err)
	}
	if err := m.store.Delete(ctx, docstore.Deleted, deleted.ID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		slog.Error("recover: order left in both collections", "order_id", targetID, "error", err.Error())
		return newError(OpRecover, id, ErrStore, err)
	}

	m.publish(ctx, targetID, messages.ActionRecovered, now)
	return nil
}

// PurgeDeleted removes an order from the deleted collection permanently.
// There is no undo. Active orders are never touched.
func (m *Manager) PurgeDeleted(ctx context.Context, id string) error {
	return m.purge(ctx, id, nil)
}

// PurgeExpired is PurgeDeleted for unattended callers: the record is read
// again and removed only if its retention has elapsed at now. A record that
// was recovered and deleted again since it was listed gets ErrNotEligible.
func (m *Manager) PurgeExpired(ctx context.Context, id string, now time.Time) error {
	return m.purge(ctx, id, &now)
}

func (m *Manager) purge(ctx context.Context, id string, expiredAt *time.Time) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveRetention(OpPurge, KindName(err), started) }()

	if id == "" {
		return newError(OpPurge, id, ErrInvalidID, nil)
	}

	deleted, err := m.findDeleted(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return newError(OpPurge, id, ErrNotFound, nil)
	}
	if err != nil {
		return newError(OpPurge, id, ErrStore, err)
	}
	if expiredAt != nil && !EligibleForPurge(deleted, *expiredAt) {
		return newError(OpPurge, id, ErrNotEligible, nil)
	}

	err = m.store.Delete(ctx, docstore.Deleted, deleted.ID)
	if errors.Is(err, docstore.ErrNotFound) {
		return newError(OpPurge, id, ErrNotFound, nil)
	}
	if err != nil {
		return newError(OpPurge, id, ErrStore, err)
	}

	m.publish(ctx, orderID(deleted), messages.ActionPurged, m.now().UTC())
	return nil
}

// ListDeleted returns the deleted collection with retentionDate filled in
// for legacy records that lack it.
func (m *Manager) ListDeleted(ctx context.Context) ([]*models.Order, error) {
	out, err := m.store.List(ctx, docstore.Deleted, docstore.Query{})
	if err != nil {
		return nil, newError("list", "", ErrStore, err)
	}
	for _, o := range out {
		if rd, ok := o.EffectiveRetentionDate(); ok && o.RetentionDate == nil {
			o.RetentionDate = &rd
		}
	}
	return out, nil
}

func (m *Manager) NormalizeOrderView(o *models.Order) models.OrderView {
	return orderview.Normalize(o)
}

func (m *Manager) publish(ctx context.Context, id string, action messages.LifecycleAction, at time.Time) {
	if m.pub == nil {
		return
	}
	ev := messages.OrderLifecycle{
		EventID: uuid.NewString(),
		OrderID: id,
		Action:  action,
		At:      at,
		Actor:   m.actor,
	}
	if err := m.pub.PublishLifecycle(ctx, ev); err != nil {
		slog.Warn("publish lifecycle event", "order_id", id, "action", string(action), "error", err.Error())
	}
}

// orderID is the id the order had while active.
func orderID(deleted *models.Order) string {
	if deleted.OriginalID != "" {
		return deleted.OriginalID
	}
	return deleted.ID
}

// recoveredAfter reports whether the active copy was written by a recovery
// that happened after the deleted copy was made. It tells an interrupted
// recovery apart from an interrupted soft delete.
func recoveredAfter(active, deleted *models.Order) bool {
	if active.RestoredAt == nil {
		return false
	}
	if deleted.DeletedAt == nil {
		return true
	}
	return !active.RestoredAt.Before(*deleted.DeletedAt)
}
