package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CommonOptions are the resource limits shared by the whole DB Manager,
// independent of any single database.
type CommonOptions struct {
	TotalMemoryCapBytes  uint64        `yaml:"total_memory_cap_bytes"`
	TotalMemtableCap     uint64        `yaml:"total_memtable_cap_bytes"`
	HighPriorityWorkers  int           `yaml:"high_priority_workers"`
	LowPriorityWorkers   int           `yaml:"low_priority_workers"`
	PoolQueueDepth       int           `yaml:"pool_queue_depth"`
	StallThresholdMillis time.Duration `yaml:"stall_threshold_millis"`
}

// RocksDbOptions are per-database options applied when a database is
// opened, field-for-field with the original storage engine's column
// family defaults.
type RocksDbOptions struct {
	WriteBufferSizeBytes   uint64 `yaml:"write_buffer_size_bytes"`
	MaxBackgroundJobs      int    `yaml:"max_background_jobs"`
	MaxTotalWalSizeBytes   uint64 `yaml:"max_total_wal_size_bytes"`
	CompactionReadaheadSize uint64 `yaml:"compaction_readahead_size"`
	StatisticsEnabled      bool   `yaml:"statistics_enabled"`
	StatisticsLevel        string `yaml:"statistics_level"`
	WalDisabled            bool   `yaml:"wal_disabled"`
}

// Configuration is the full YAML-backed configuration for a partitiond
// process: common resource limits plus a per-database options map.
type Configuration struct {
	Common    CommonOptions              `yaml:"common"`
	Databases map[string]RocksDbOptions `yaml:"databases"`

	path string
}

// Load reads and parses a Configuration from path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.path = path
	return &cfg, nil
}

// DatabaseOptions returns the RocksDbOptions configured for name, or the
// zero value if none were specified.
func (c *Configuration) DatabaseOptions(name string) RocksDbOptions {
	return c.Databases[name]
}

// pollInterval is the mtime-polling cadence used by Watcher when no
// filesystem-notification library is available in the dependency set.
const pollInterval = 2 * time.Second

// Watcher starts a goroutine polling the configuration file's mtime and
// returns a channel delivering a freshly reloaded CommonOptions whenever
// it advances. The returned stop function terminates the goroutine.
func (c *Configuration) Watcher() (<-chan CommonOptions, func()) {
	out := make(chan CommonOptions, 1)
	stop := make(chan struct{})

	go func() {
		var lastMod time.Time
		if info, err := os.Stat(c.path); err == nil {
			lastMod = info.ModTime()
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				close(out)
				return
			case <-ticker.C:
				info, err := os.Stat(c.path)
				if err != nil || !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()

				reloaded, err := Load(c.path)
				if err != nil {
					continue
				}
				c.Common = reloaded.Common
				c.Databases = reloaded.Databases

				select {
				case out <- c.Common:
				default:
					// Drop an unconsumed notification rather than block
					// the poller; the next tick will reflect the latest
					// state regardless.
				}
			}
		}
	}()

	return out, func() { close(stop) }
}
