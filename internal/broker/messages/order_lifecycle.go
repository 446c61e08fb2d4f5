package messages

import (
	"time"
)

type LifecycleAction string

const (
	ActionSoftDeleted LifecycleAction = "soft_deleted"
	ActionRecovered   LifecycleAction = "recovered"
	ActionPurged      LifecycleAction = "purged"
)

// OrderLifecycle публикуется в order.lifecycle после каждого успешного перехода.
type OrderLifecycle struct {
	EventID string          `json:"event_id"`
	OrderID string          `json:"order_id"`
	Action  LifecycleAction `json:"action"`
	At      time.Time       `json:"at"`
	// Actor is "api" for admin calls and "sweeper" for the retention job.
	Actor string `json:"actor,omitempty"`
}
