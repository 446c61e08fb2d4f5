// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RetentionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderbox",
		Name:      "retention_operations_total",
		Help:      "Retention operations by op and outcome.",
	}, []string{"op", "outcome"})

	RetentionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderbox",
		Name:      "retention_operation_seconds",
		Help:      "Latency of retention operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	SyncSets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderbox",
		Name:      "sync_timestamp_writes_total",
		Help:      "Sync timestamp writes per target and outcome.",
	}, []string{"type", "target", "outcome"})

	SyncChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderbox",
		Name:      "sync_timestamp_changes_total",
		Help:      "Changes observed by sync timestamp watchers.",
	}, []string{"type"})

	SweeperCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "orderbox",
		Name:      "sweeper_cycles_total",
		Help:      "Completed retention sweeper cycles.",
	})

	SweeperPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderbox",
		Name:      "sweeper_purged_total",
		Help:      "Orders handled by the sweeper by outcome.",
	}, []string{"outcome"})
)

// ObserveRetention records one finished retention operation.
// outcome is "ok" or an error kind name.
func ObserveRetention(op, outcome string, started time.Time) {
	RetentionOps.WithLabelValues(op, outcome).Inc()
	RetentionDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
