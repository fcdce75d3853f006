package rocksdb

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cuemby/partitiond/pkg/config"
	"github.com/cuemby/partitiond/pkg/log"
	"github.com/cuemby/partitiond/pkg/metrics"
)

// defaultColumnFamilies are the buckets every opened database gets,
// matching the original storage engine's default column-family set for
// this domain: the invocation status table, the inbox, the outbox, the
// journal, and per-service user state.
var defaultColumnFamilies = []ColumnFamily{
	"status",
	"inbox",
	"outbox",
	"journal",
	"state",
}

// Manager is the process-wide root of the storage subsystem: it owns the
// shared MemoryBudget, the High/Low Priority Task Runner pools, the Config
// Watchdog, and every open Access handle. Exactly one Manager exists per
// process, reached through Get after Init.
type Manager struct {
	mu   sync.RWMutex
	dbs  map[string]*Access
	dir  string
	cfg  *config.Configuration
	opts atomic.Value // config.CommonOptions

	budget   *MemoryBudget
	high     *Pool
	low      *Pool
	watchdog *DbWatchdog

	stopWatcher func()
}

var (
	once     sync.Once
	instance *Manager
	initErr  error
)

// Init constructs the singleton Manager rooted at dir using cfg. It is
// safe to call Init more than once; only the first call takes effect, and
// every caller observes its result.
func Init(dir string, cfg *config.Configuration) (*Manager, error) {
	once.Do(func() {
		instance, initErr = newManager(dir, cfg)
	})
	return instance, initErr
}

// Get returns the singleton Manager established by Init, or nil if Init
// has not yet been called.
func Get() *Manager {
	return instance
}

// Reset tears down the singleton so a fresh Init can run; it exists only
// for tests, which need an isolated Manager per test case.
func Reset() {
	if instance != nil {
		instance.Shutdown()
	}
	once = sync.Once{}
	instance = nil
	initErr = nil
}

func newManager(dir string, cfg *config.Configuration) (*Manager, error) {
	opts := cfg.Common
	if opts.HighPriorityWorkers <= 0 {
		opts.HighPriorityWorkers = 4
	}
	if opts.LowPriorityWorkers <= 0 {
		opts.LowPriorityWorkers = 2
	}
	if opts.PoolQueueDepth <= 0 {
		opts.PoolQueueDepth = 256
	}

	budget := NewMemoryBudget(opts.TotalMemoryCapBytes, opts.TotalMemtableCap)
	changes, stopWatcher := cfg.Watcher()

	m := &Manager{
		dbs:         make(map[string]*Access),
		dir:         dir,
		cfg:         cfg,
		budget:      budget,
		high:        NewPool(High, opts.HighPriorityWorkers, opts.PoolQueueDepth),
		low:         NewPool(Low, opts.LowPriorityWorkers, opts.PoolQueueDepth),
		stopWatcher: stopWatcher,
	}
	m.opts.Store(opts)
	m.watchdog = NewDbWatchdog(opts, changes)

	metrics.CacheCapacityBytes.Set(float64(opts.TotalMemoryCapBytes))
	metrics.MemtableCeilingBytes.Set(float64(opts.TotalMemtableCap))

	log.WithComponent("db_manager").Info().Str("dir", dir).Msg("storage manager initialized")
	return m, nil
}

// defaultCfOptions returns the per-database RocksDbOptions that
// resolveOptions layers configured values over. bbolt has no bloom filter
// or block cache of its own, so no bloom-filter or cache setting appears
// here.
func defaultCfOptions() config.RocksDbOptions {
	return config.RocksDbOptions{
		WriteBufferSizeBytes:    64 << 20,
		MaxBackgroundJobs:       2,
		MaxTotalWalSizeBytes:    256 << 20,
		CompactionReadaheadSize: 2 << 20,
		StatisticsEnabled:       true,
		StatisticsLevel:         "except_detailed_timers",
	}
}

// resolveOptions layers the configured per-database RocksDbOptions (if
// any) over defaultCfOptions, so a database with no explicit entry in the
// configuration file still gets sane defaults.
func resolveOptions(cfg *config.Configuration, name string) config.RocksDbOptions {
	resolved := defaultCfOptions()
	configured := cfg.DatabaseOptions(name)

	if configured.WriteBufferSizeBytes != 0 {
		resolved.WriteBufferSizeBytes = configured.WriteBufferSizeBytes
	}
	if configured.MaxBackgroundJobs != 0 {
		resolved.MaxBackgroundJobs = configured.MaxBackgroundJobs
	}
	if configured.MaxTotalWalSizeBytes != 0 {
		resolved.MaxTotalWalSizeBytes = configured.MaxTotalWalSizeBytes
	}
	if configured.CompactionReadaheadSize != 0 {
		resolved.CompactionReadaheadSize = configured.CompactionReadaheadSize
	}
	if configured.StatisticsLevel != "" {
		resolved.StatisticsLevel = configured.StatisticsLevel
		resolved.StatisticsEnabled = configured.StatisticsEnabled
	}
	resolved.WalDisabled = configured.WalDisabled

	return resolved
}

// OpenDB opens (or returns the already-open) database named name, applying
// configured or default RocksDbOptions and registering it with the Config
// Watchdog for future reconciliation passes.
func (m *Manager) OpenDB(name string) (*Access, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.dbs[name]; ok {
		return a, nil
	}

	path := filepath.Join(m.dir, name+".db")
	a, err := Open(name, path, defaultColumnFamilies, m.budget, resolveOptions(m.cfg, name))
	if err != nil {
		return nil, err
	}

	m.dbs[name] = a
	metrics.OpenDatabasesTotal.Set(float64(len(m.dbs)))

	m.watchdog.Register(&ConfigSubscription{
		Name: name,
		Amend: func(opts config.CommonOptions) {
			m.opts.Store(opts)
			m.budget.SetCapacity(opts.TotalMemoryCapBytes)
			m.budget.SetMemtableCeiling(opts.TotalMemtableCap)
		},
	})

	log.WithComponent("db_manager").Info().Str("name", name).Msg("database opened")
	return a, nil
}

// GetDB returns an already-open database, or an error if it was never
// opened through OpenDB.
func (m *Manager) GetDB(name string) (*Access, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.dbs[name]
	if !ok {
		return nil, fmt.Errorf("rocksdb: database %q not open", name)
	}
	return a, nil
}

// GetAllDBs returns every currently open database keyed by name.
func (m *Manager) GetAllDBs() map[string]*Access {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Access, len(m.dbs))
	for k, v := range m.dbs {
		out[k] = v
	}
	return out
}

// MemoryUsageStats is the aggregate usage report across every open
// database, consumed by the admin `stats` command and by Collector.
type MemoryUsageStats struct {
	CacheCapacityBytes   uint64
	MemtableCeilingBytes uint64
	MemtableUsageBytes   uint64
	OpenDatabases        int
	PerDatabase          map[string]DBStats
}

// GetMemoryUsageStats aggregates the Memory Budget's counters with a
// per-database snapshot from each Access handle.
func (m *Manager) GetMemoryUsageStats() MemoryUsageStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	per := make(map[string]DBStats, len(m.dbs))
	for name, a := range m.dbs {
		per[name] = a.Stats(defaultColumnFamilies)
	}

	return MemoryUsageStats{
		CacheCapacityBytes:   m.budget.Capacity(),
		MemtableCeilingBytes: m.budget.MemtableCeiling(),
		MemtableUsageBytes:   m.budget.MemtableUsage(),
		OpenDatabases:        len(m.dbs),
		PerDatabase:          per,
	}
}

// SampleMetrics implements metrics.Sampler so Collector can poll the
// Manager on a ticker without a direct import cycle through pkg/metrics.
func (m *Manager) SampleMetrics() metrics.Snapshot {
	stats := m.GetMemoryUsageStats()
	return metrics.Snapshot{
		CacheCapacityBytes:   stats.CacheCapacityBytes,
		MemtableCeilingBytes: stats.MemtableCeilingBytes,
		MemtableUsageBytes:   stats.MemtableUsageBytes,
		OpenDatabases:        stats.OpenDatabases,
		HighPoolQueueDepth:   m.high.Len(),
		LowPoolQueueDepth:    m.low.Len(),
	}
}

// Shutdown closes every open database and stops the Priority Task Runner
// pools, the Config Watchdog, and the configuration file watcher.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, a := range m.dbs {
		if err := a.Close(); err != nil {
			log.WithComponent("db_manager").Warn().Str("name", name).Err(err).Msg("close failed during shutdown")
		}
	}
	m.dbs = make(map[string]*Access)

	m.high.Shutdown()
	m.low.Shutdown()
	m.watchdog.Shutdown()
	if m.stopWatcher != nil {
		m.stopWatcher()
	}

	metrics.OpenDatabasesTotal.Set(0)
	log.WithComponent("db_manager").Info().Msg("storage manager shut down")
}

// HighPool returns the High-priority Priority Task Runner pool.
func (m *Manager) HighPool() *Pool { return m.high }

// LowPool returns the Low-priority Priority Task Runner pool.
func (m *Manager) LowPool() *Pool { return m.low }
