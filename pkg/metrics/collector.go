package metrics

import "time"

// Sampler is implemented by anything that can report a point-in-time
// snapshot of the resources tracked by the Memory Budget, Priority Task
// Runner, and DB Manager. rocksdb.Manager satisfies this.
type Sampler interface {
	SampleMetrics() Snapshot
}

// Snapshot is a point-in-time read of the storage manager's gauges.
type Snapshot struct {
	CacheCapacityBytes   uint64
	MemtableCeilingBytes uint64
	MemtableUsageBytes   uint64
	OpenDatabases        int
	HighPoolQueueDepth   int
	LowPoolQueueDepth    int
}

// Collector periodically samples a Sampler and publishes the result to the
// Prometheus gauges registered in this package.
type Collector struct {
	sampler  Sampler
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector for the given sampler.
func NewCollector(sampler Sampler) *Collector {
	return &Collector{
		sampler:  sampler,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic sampling in the background.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.sampler.SampleMetrics()
	CacheCapacityBytes.Set(float64(snap.CacheCapacityBytes))
	MemtableCeilingBytes.Set(float64(snap.MemtableCeilingBytes))
	MemtableUsageBytes.Set(float64(snap.MemtableUsageBytes))
	OpenDatabasesTotal.Set(float64(snap.OpenDatabases))
	PoolQueueDepth.WithLabelValues("high").Set(float64(snap.HighPoolQueueDepth))
	PoolQueueDepth.WithLabelValues("low").Set(float64(snap.LowPoolQueueDepth))
}
