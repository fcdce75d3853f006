package rocksdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/partitiond/pkg/config"
)

func testConfig(t *testing.T) *config.Configuration {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
common:
  total_memory_cap_bytes: 1048576
  total_memtable_cap_bytes: 65536
  high_priority_workers: 1
  low_priority_workers: 1
  pool_queue_depth: 16
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	return cfg
}

func TestManager_InitIsASingleton(t *testing.T) {
	Reset()
	defer Reset()

	dir := t.TempDir()
	m1, err := Init(dir, testConfig(t))
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	m2, err := Init(t.TempDir(), testConfig(t))
	if err != nil {
		t.Fatalf("second init call failed: %v", err)
	}
	if m1 != m2 {
		t.Fatal("expected Init to return the same instance on repeated calls")
	}
	if Get() != m1 {
		t.Fatal("expected Get to return the singleton instance")
	}
}

func TestManager_OpenDBIsIdempotent(t *testing.T) {
	Reset()
	defer Reset()

	m, err := Init(t.TempDir(), testConfig(t))
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	a1, err := m.OpenDB("partition-0")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	a2, err := m.OpenDB("partition-0")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if a1 != a2 {
		t.Fatal("expected OpenDB to return the same handle for an already-open database")
	}

	if _, err := m.GetDB("partition-0"); err != nil {
		t.Fatalf("GetDB failed: %v", err)
	}
	if _, err := m.GetDB("missing"); err == nil {
		t.Fatal("expected an error for a database that was never opened")
	}
}

func TestManager_GetMemoryUsageStatsReflectsCapacity(t *testing.T) {
	Reset()
	defer Reset()

	m, err := Init(t.TempDir(), testConfig(t))
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := m.OpenDB("partition-0"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	stats := m.GetMemoryUsageStats()
	if stats.CacheCapacityBytes != 1048576 {
		t.Fatalf("expected capacity 1048576, got %d", stats.CacheCapacityBytes)
	}
	if stats.OpenDatabases != 1 {
		t.Fatalf("expected 1 open database, got %d", stats.OpenDatabases)
	}
	if _, ok := stats.PerDatabase["partition-0"]; !ok {
		t.Fatal("expected per-database stats for partition-0")
	}
}

func TestManager_SampleMetricsImplementsSampler(t *testing.T) {
	Reset()
	defer Reset()

	m, err := Init(t.TempDir(), testConfig(t))
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	snap := m.SampleMetrics()
	if snap.CacheCapacityBytes != 1048576 {
		t.Fatalf("expected capacity 1048576, got %d", snap.CacheCapacityBytes)
	}
}

func TestManager_ShutdownClosesOpenDatabases(t *testing.T) {
	Reset()
	defer Reset()

	m, err := Init(t.TempDir(), testConfig(t))
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := m.OpenDB("partition-0"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	m.Shutdown()

	if len(m.GetAllDBs()) != 0 {
		t.Fatal("expected no open databases after Shutdown")
	}
}
