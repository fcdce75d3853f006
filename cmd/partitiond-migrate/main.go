// Command partitiond-migrate inspects the on-disk column-family layout of
// every database under a data directory and, with --apply, splits legacy
// journal entries that were stored inline in the "state" bucket (the
// pre-split schema) out into their own "journal" bucket. It never deletes
// the legacy data; the "state" bucket is left untouched for rollback.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

var (
	dataDir = flag.String("data-dir", "/var/lib/partitiond", "partitiond data directory")
	apply   = flag.Bool("apply", false, "perform the migration instead of only reporting it")
	backup  = flag.String("backup", "", "path to back up each database before migrating (default: <db>.backup)")
)

// legacyJournalPrefix tagged a journal entry stored inline in the "state"
// bucket before the journal column family existed as its own bucket.
const legacyJournalPrefix = "journal:"

var expectedColumnFamilies = []string{"status", "inbox", "outbox", "journal", "state"}

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("partitiond column-family migration tool")
	log.Println("========================================")

	entries, err := filepath.Glob(filepath.Join(*dataDir, "*.db"))
	if err != nil {
		log.Fatalf("failed to list data dir: %v", err)
	}
	if len(entries) == 0 {
		log.Printf("no *.db files found under %s", *dataDir)
		return
	}

	for _, path := range entries {
		if err := inspectAndMigrate(path); err != nil {
			log.Fatalf("%s: %v", path, err)
		}
	}
}

func inspectAndMigrate(path string) error {
	log.Printf("\nDatabase: %s", path)
	log.Printf("Dry run: %v", !*apply)

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("open failed: %w", err)
	}
	defer db.Close()

	present := make(map[string]bool)
	legacyKeys := 0

	err = db.View(func(tx *bolt.Tx) error {
		if err := tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			present[string(name)] = true
			return nil
		}); err != nil {
			return err
		}

		state := tx.Bucket([]byte("state"))
		if state == nil {
			return nil
		}
		return state.ForEach(func(k, v []byte) error {
			if bytes.HasPrefix(k, []byte(legacyJournalPrefix)) {
				legacyKeys++
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("inspection failed: %w", err)
	}

	reportColumnFamilies(present)

	if legacyKeys == 0 {
		log.Println("✓ no legacy inline journal entries found in 'state'")
		return nil
	}
	log.Printf("Found %d legacy inline journal entries in 'state'", legacyKeys)

	if !*apply {
		log.Println("\n[DRY RUN] Would perform the following operations:")
		log.Println("1. Create 'journal' bucket if missing")
		log.Printf("2. Move %d entries from 'state' (prefix %q) into 'journal'\n", legacyKeys, legacyJournalPrefix)
		log.Println("3. Preserve the original entries in 'state' for rollback")
		return nil
	}

	backupPath := *backup
	if backupPath == "" {
		backupPath = path + ".backup"
	}
	log.Printf("Creating backup: %s", backupPath)
	if err := copyFile(path, backupPath); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	log.Println("✓ Backup created successfully")

	migrated := 0
	err = db.Update(func(tx *bolt.Tx) error {
		journal, err := tx.CreateBucketIfNotExists([]byte("journal"))
		if err != nil {
			return fmt.Errorf("failed to create journal bucket: %w", err)
		}
		state := tx.Bucket([]byte("state"))
		if state == nil {
			return nil
		}

		return state.ForEach(func(k, v []byte) error {
			if !bytes.HasPrefix(k, []byte(legacyJournalPrefix)) {
				return nil
			}
			newKey := bytes.TrimPrefix(k, []byte(legacyJournalPrefix))
			if err := journal.Put(newKey, v); err != nil {
				return fmt.Errorf("failed to copy %s: %w", k, err)
			}
			migrated++
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Printf("✓ Migrated %d/%d legacy entries into 'journal'", migrated, legacyKeys)
	log.Println("✓ Preserved inline entries in 'state' for rollback")
	return nil
}

func reportColumnFamilies(present map[string]bool) {
	log.Println("Column families:")
	for _, cf := range expectedColumnFamilies {
		status := "present"
		if !present[cf] {
			status = "MISSING"
		}
		log.Printf("  %-10s %s", cf, status)
	}
	var extra []string
	for name := range present {
		found := false
		for _, cf := range expectedColumnFamilies {
			if cf == name {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		log.Printf("  unexpected buckets: %s", strings.Join(extra, ", "))
	}
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0o600)
}
