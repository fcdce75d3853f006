package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Memory Budget metrics
	CacheCapacityBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partitiond_cache_capacity_bytes",
			Help: "Configured capacity of the shared block cache",
		},
	)

	MemtableCeilingBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partitiond_memtable_ceiling_bytes",
			Help: "Configured ceiling for aggregate memtable bytes",
		},
	)

	MemtableUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partitiond_memtable_usage_bytes",
			Help: "Current aggregate memtable bytes in use",
		},
	)

	// Priority Task Runner metrics
	PoolQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partitiond_pool_queue_depth",
			Help: "Number of tasks waiting in a priority pool queue",
		},
		[]string{"priority"},
	)

	PoolTasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partitiond_pool_tasks_completed_total",
			Help: "Total number of storage tasks completed by priority",
		},
		[]string{"priority"},
	)

	PoolTasksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partitiond_pool_tasks_rejected_total",
			Help: "Total number of storage tasks rejected due to shutdown",
		},
		[]string{"priority"},
	)

	// DB Manager metrics
	OpenDatabasesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "partitiond_open_databases_total",
			Help: "Number of databases currently open",
		},
	)

	WatchdogReconciliationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partitiond_watchdog_reconciliations_total",
			Help: "Total number of configuration reconciliation passes run by the watchdog",
		},
	)

	WatchdogDeliveryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partitiond_watchdog_delivery_failures_total",
			Help: "Total number of Register messages that failed to reach the watchdog",
		},
	)

	// State Machine metrics
	EffectsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partitiond_effects_emitted_total",
			Help: "Total number of effects emitted by the state machine, by kind",
		},
		[]string{"kind"},
	)

	CommandsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partitiond_commands_dropped_total",
			Help: "Total number of commands dropped without producing effects, by reason",
		},
		[]string{"reason"},
	)

	InvariantViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partitiond_invariant_violations_total",
			Help: "Total number of state-machine invariant violations observed before panicking",
		},
	)

	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "partitiond_apply_duration_seconds",
			Help:    "Time taken by a single StateMachine.Apply call",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheCapacityBytes,
		MemtableCeilingBytes,
		MemtableUsageBytes,
		PoolQueueDepth,
		PoolTasksCompletedTotal,
		PoolTasksRejectedTotal,
		OpenDatabasesTotal,
		WatchdogReconciliationsTotal,
		WatchdogDeliveryFailuresTotal,
		EffectsEmittedTotal,
		CommandsDroppedTotal,
		InvariantViolationsTotal,
		ApplyDuration,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
