/*
Package metrics provides Prometheus metrics collection and exposition for
the partition core: the Memory Budget, Priority Task Runner, DB Manager,
and State Machine all publish through this package.

# Metrics catalog

partitiond_cache_capacity_bytes (gauge): configured shared block-cache
capacity.

partitiond_memtable_ceiling_bytes / partitiond_memtable_usage_bytes
(gauges): configured ceiling and current aggregate memtable usage.

partitiond_pool_queue_depth{priority} (gauge): tasks waiting in a priority
pool's queue.

partitiond_pool_tasks_completed_total{priority} /
partitiond_pool_tasks_rejected_total{priority} (counters): Priority Task
Runner throughput and shutdown-gated rejections.

partitiond_open_databases_total (gauge): databases currently open under
the DB Manager.

partitiond_watchdog_reconciliations_total /
partitiond_watchdog_delivery_failures_total (counters): Config Watchdog
activity.

partitiond_effects_emitted_total{kind} / partitiond_commands_dropped_total{reason}
/ partitiond_invariant_violations_total (counters), partitiond_apply_duration_seconds
(histogram): State Machine throughput and latency.

# Usage

	timer := metrics.NewTimer()
	err := sm.Apply(cmd, state, effects)
	timer.ObserveDuration(metrics.ApplyDuration)

Sampling the storage manager's gauges runs on a ticker via Collector,
which accepts anything implementing Sampler (rocksdb.Manager does):

	c := metrics.NewCollector(mgr)
	c.Start()
	defer c.Stop()

All metrics are registered at package init against the default Prometheus
registry; Handler() exposes them for scraping.
*/
package metrics
