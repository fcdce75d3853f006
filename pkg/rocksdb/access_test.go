package rocksdb

import (
	"path/filepath"
	"testing"

	"github.com/cuemby/partitiond/pkg/config"
)

func openTestAccess(t *testing.T) *Access {
	t.Helper()
	dir := t.TempDir()
	a, err := Open("test", filepath.Join(dir, "test.db"), defaultColumnFamilies, NewMemoryBudget(0, 0), config.RocksDbOptions{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAccess_PutGetDelete(t *testing.T) {
	a := openTestAccess(t)

	if err := a.Put("state", []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	v, err := a.Get("state", []byte("k1"))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("expected v1, got %q", v)
	}

	if err := a.Delete("state", []byte("k1")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	v, err = a.Get("state", []byte("k1"))
	if err != nil {
		t.Fatalf("get after delete failed: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil after delete, got %q", v)
	}
}

func TestAccess_GetMissingKeyReturnsNil(t *testing.T) {
	a := openTestAccess(t)
	v, err := a.Get("state", []byte("absent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil, got %q", v)
	}
}

func TestAccess_ForEachVisitsInKeyOrder(t *testing.T) {
	a := openTestAccess(t)

	for _, k := range []string{"b", "a", "c"} {
		if err := a.Put("state", []byte(k), []byte(k)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	var seen []string
	err := a.ForEach("state", func(key, value []byte) error {
		seen = append(seen, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("foreach failed: %v", err)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Fatalf("expected sorted [a b c], got %v", seen)
	}
}

func TestAccess_UpdateRejectedOverMemtableCeiling(t *testing.T) {
	dir := t.TempDir()
	budget := NewMemoryBudget(0, 4)
	a, err := Open("test", filepath.Join(dir, "test.db"), defaultColumnFamilies, budget, config.RocksDbOptions{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer a.Close()

	if err := a.Put("state", []byte("k"), []byte("toolong")); err == nil {
		t.Fatal("expected ErrMemtableFull for a write exceeding the ceiling")
	}
}
