package main

import (
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func seedLegacyDB(t *testing.T, path string) {
	t.Helper()
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		state, err := tx.CreateBucketIfNotExists([]byte("state"))
		if err != nil {
			return err
		}
		if err := state.Put([]byte("journal:0"), []byte("entry-0")); err != nil {
			return err
		}
		if err := state.Put([]byte("journal:1"), []byte("entry-1")); err != nil {
			return err
		}
		return state.Put([]byte("greeting"), []byte("hello"))
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestInspectAndMigrate_DryRunLeavesDatabaseUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partition-0.db")
	seedLegacyDB(t, path)

	*apply = false
	defer func() { *apply = false }()

	if err := inspectAndMigrate(path); err != nil {
		t.Fatalf("inspectAndMigrate failed: %v", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte("journal")) != nil {
			t.Fatal("dry run must not create the journal bucket")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
}

func TestInspectAndMigrate_ApplyMovesLegacyEntriesIntoJournal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partition-0.db")
	seedLegacyDB(t, path)

	*apply = true
	*backup = filepath.Join(dir, "partition-0.db.backup")
	defer func() { *apply = false; *backup = "" }()

	if err := inspectAndMigrate(path); err != nil {
		t.Fatalf("inspectAndMigrate failed: %v", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		journal := tx.Bucket([]byte("journal"))
		if journal == nil {
			t.Fatal("expected journal bucket to exist after apply")
		}
		if v := journal.Get([]byte("0")); string(v) != "entry-0" {
			t.Fatalf("expected entry-0, got %q", v)
		}
		if v := journal.Get([]byte("1")); string(v) != "entry-1" {
			t.Fatalf("expected entry-1, got %q", v)
		}

		state := tx.Bucket([]byte("state"))
		if v := state.Get([]byte("journal:0")); string(v) != "entry-0" {
			t.Fatal("expected legacy entries to remain in state for rollback")
		}
		if v := state.Get([]byte("greeting")); string(v) != "hello" {
			t.Fatal("expected unrelated state entries to survive untouched")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}

	if _, err := os.Stat(*backup); err != nil {
		t.Fatalf("expected backup file to exist: %v", err)
	}
}
