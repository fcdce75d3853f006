package rocksdb

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/partitiond/pkg/config"
)

func TestDbWatchdog_RegisterAppliesCurrentConfigImmediately(t *testing.T) {
	changes := make(chan config.CommonOptions)
	w := NewDbWatchdog(config.CommonOptions{TotalMemoryCapBytes: 100}, changes)
	defer w.Shutdown()

	var applied atomic.Uint64
	w.Register(&ConfigSubscription{
		Name: "db1",
		Amend: func(opts config.CommonOptions) {
			applied.Store(opts.TotalMemoryCapBytes)
		},
	})

	if applied.Load() != 100 {
		t.Fatalf("expected 100, got %d", applied.Load())
	}
}

func TestDbWatchdog_ResetAllReconcilesEveryRegistered(t *testing.T) {
	changes := make(chan config.CommonOptions)
	w := NewDbWatchdog(config.CommonOptions{TotalMemoryCapBytes: 1}, changes)
	defer w.Shutdown()

	var count atomic.Int32
	for i := 0; i < 3; i++ {
		w.Register(&ConfigSubscription{
			Name:  "db",
			Amend: func(config.CommonOptions) { count.Add(1) },
		})
	}
	count.Store(0)

	w.ResetAll()
	time.Sleep(20 * time.Millisecond)

	if count.Load() == 0 {
		t.Fatal("expected ResetAll to reconcile registered subscriptions")
	}
}

func TestDbWatchdog_ConfigChangeTriggersReconciliation(t *testing.T) {
	changes := make(chan config.CommonOptions)
	w := NewDbWatchdog(config.CommonOptions{TotalMemoryCapBytes: 1}, changes)
	defer w.Shutdown()

	var got atomic.Uint64
	w.Register(&ConfigSubscription{
		Name: "db1",
		Amend: func(opts config.CommonOptions) {
			got.Store(opts.TotalMemoryCapBytes)
		},
	})
	time.Sleep(20 * time.Millisecond) // let the registration command be processed before the config change races it

	changes <- config.CommonOptions{TotalMemoryCapBytes: 77}
	time.Sleep(20 * time.Millisecond)

	if got.Load() != 77 {
		t.Fatalf("expected 77 after config change, got %d", got.Load())
	}
}

func TestDbWatchdog_RegisterAfterShutdownIsDropped(t *testing.T) {
	changes := make(chan config.CommonOptions)
	w := NewDbWatchdog(config.CommonOptions{}, changes)
	w.Shutdown()
	time.Sleep(10 * time.Millisecond)

	// Register must not block or panic even though the loop has exited.
	done := make(chan struct{})
	go func() {
		w.Register(&ConfigSubscription{Name: "late", Amend: func(config.CommonOptions) {}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked after shutdown")
	}
}
