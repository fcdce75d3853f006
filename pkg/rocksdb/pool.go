package rocksdb

import (
	"sync"

	"github.com/cuemby/partitiond/pkg/metrics"
)

// Priority selects which worker pool a storage task runs on. High-priority
// tasks are reserved for work on the hot apply path; Low-priority tasks
// are background maintenance (stats sampling, compaction-equivalent
// sync) that should never starve foreground reads and writes.
type Priority int

const (
	High Priority = iota
	Low
)

func (p Priority) String() string {
	if p == High {
		return "high"
	}
	return "low"
}

// ReadyStorageTask is a unit of blocking disk work submitted to a Pool.
type ReadyStorageTask func() (interface{}, error)

// result carries a ReadyStorageTask's outcome back to the submitter.
type result struct {
	value interface{}
	err   error
}

// Pool is a fixed-size worker pool draining a buffered channel of
// ReadyStorageTask with N goroutines, one per Priority. It exists so
// blocking bbolt transactions never run on a caller's own goroutine when
// that goroutine belongs to an async runtime that must stay responsive.
type Pool struct {
	priority Priority
	tasks    chan func()

	mu       sync.Mutex
	shutdown bool
	done     chan struct{}
}

// NewPool starts a Pool with workers goroutines draining a queue of depth
// queueDepth.
func NewPool(priority Priority, workers, queueDepth int) *Pool {
	p := &Pool{
		priority: priority,
		tasks:    make(chan func(), queueDepth),
		done:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for {
		select {
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			fn()
		case <-p.done:
			return
		}
	}
}

// AsyncSpawn submits task and returns a channel that receives exactly one
// result once the task completes. It returns ErrShutdown without
// submitting if the pool has been shut down.
func (p *Pool) AsyncSpawn(task ReadyStorageTask) (<-chan result, error) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		metrics.PoolTasksRejectedTotal.WithLabelValues(p.priority.String()).Inc()
		return nil, &ErrShutdown{Op: "async_spawn"}
	}
	p.mu.Unlock()

	out := make(chan result, 1)
	metrics.PoolQueueDepth.WithLabelValues(p.priority.String()).Inc()
	p.tasks <- func() {
		metrics.PoolQueueDepth.WithLabelValues(p.priority.String()).Dec()
		v, err := task()
		out <- result{value: v, err: err}
		metrics.PoolTasksCompletedTotal.WithLabelValues(p.priority.String()).Inc()
	}
	return out, nil
}

// AsyncSpawnUnchecked is AsyncSpawn without the shutdown check; used when
// the caller has already established the pool is alive (e.g. from within
// another task already running on it) and wants to avoid the lock.
func (p *Pool) AsyncSpawnUnchecked(task ReadyStorageTask) <-chan result {
	out := make(chan result, 1)
	metrics.PoolQueueDepth.WithLabelValues(p.priority.String()).Inc()
	p.tasks <- func() {
		metrics.PoolQueueDepth.WithLabelValues(p.priority.String()).Dec()
		v, err := task()
		out <- result{value: v, err: err}
		metrics.PoolTasksCompletedTotal.WithLabelValues(p.priority.String()).Inc()
	}
	return out
}

// Spawn submits task and blocks until it completes, returning its result
// directly.
func (p *Pool) Spawn(task ReadyStorageTask) (interface{}, error) {
	ch, err := p.AsyncSpawn(task)
	if err != nil {
		return nil, err
	}
	r := <-ch
	return r.value, r.err
}

// Len reports the number of tasks currently queued (not yet picked up by
// a worker).
func (p *Pool) Len() int {
	return len(p.tasks)
}

// Shutdown stops accepting new tasks and signals workers to exit as soon
// as they next reach the select, without waiting for the queue to drain.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	p.mu.Unlock()
	close(p.done)
}
