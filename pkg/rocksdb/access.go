package rocksdb

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/cuemby/partitiond/pkg/config"
)

// ColumnFamily names a bucket within a database, mirroring the
// column-family concept of the original storage engine.
type ColumnFamily string

// DBStats summarizes a single open database for the Memory Budget's
// aggregate usage report.
type DBStats struct {
	Name           string
	ColumnFamilies int
	SizeBytes      int64
	MemtableUsage  uint64
}

// Access wraps a single open *bbolt.DB, exposing column families as typed
// bucket handles and routing write-batch admission through a shared
// MemoryBudget.
type Access struct {
	name    string
	db      *bbolt.DB
	budget  *MemoryBudget
	options config.RocksDbOptions
}

// Open opens (creating if absent) the database at path, ensuring every
// column family in cfs exists as a top-level bucket.
func Open(name, path string, cfs []ColumnFamily, budget *MemoryBudget, opts config.RocksDbOptions) (*Access, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, &OpenError{Name: name, Cause: err}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, cf := range cfs {
			if _, err := tx.CreateBucketIfNotExists([]byte(cf)); err != nil {
				return fmt.Errorf("create column family %q: %w", cf, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, &OpenError{Name: name, Cause: err}
	}

	if opts.WalDisabled {
		db.NoSync = true
	}

	return &Access{name: name, db: db, budget: budget, options: opts}, nil
}

// Options returns the resolved RocksDbOptions this database was opened
// with.
func (a *Access) Options() config.RocksDbOptions {
	return a.options
}

// Close closes the underlying database handle.
func (a *Access) Close() error {
	return a.db.Close()
}

// View runs fn in a read-only transaction over the whole database.
func (a *Access) View(fn func(tx *bbolt.Tx) error) error {
	return a.db.View(fn)
}

// Update runs fn in a read-write transaction, accounting the transaction's
// approximate size against the shared MemoryBudget. If the budget rejects
// admission, Update returns ErrMemtableFull without running fn.
func (a *Access) Update(estimatedBytes uint64, fn func(tx *bbolt.Tx) error) error {
	if a.budget != nil && estimatedBytes > 0 {
		if !a.budget.AdmitWrite(estimatedBytes) {
			return ErrMemtableFull
		}
		defer a.budget.ReleaseWrite(estimatedBytes)
	}
	return a.db.Update(fn)
}

// Get reads a single key from a column family. It returns nil, nil when
// the key is absent.
func (a *Access) Get(cf ColumnFamily, key []byte) ([]byte, error) {
	var value []byte
	err := a.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		if b == nil {
			return fmt.Errorf("column family %q not found", cf)
		}
		if v := b.Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

// Put writes a single key into a column family, accounting the write
// against the shared MemoryBudget.
func (a *Access) Put(cf ColumnFamily, key, value []byte) error {
	return a.Update(uint64(len(key)+len(value)), func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		if b == nil {
			return fmt.Errorf("column family %q not found", cf)
		}
		return b.Put(key, value)
	})
}

// Delete removes a single key from a column family.
func (a *Access) Delete(cf ColumnFamily, key []byte) error {
	return a.Update(uint64(len(key)), func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		if b == nil {
			return fmt.Errorf("column family %q not found", cf)
		}
		return b.Delete(key)
	})
}

// ForEach iterates every key/value pair in a column family in key order
// using a bucket cursor, stopping early if fn returns an error.
func (a *Access) ForEach(cf ColumnFamily, fn func(key, value []byte) error) error {
	return a.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		if b == nil {
			return fmt.Errorf("column family %q not found", cf)
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats reports bucket count and on-disk size for this database.
func (a *Access) Stats(cfs []ColumnFamily) DBStats {
	stats := DBStats{Name: a.name, ColumnFamilies: len(cfs)}
	_ = a.db.View(func(tx *bbolt.Tx) error {
		stats.SizeBytes = tx.Size()
		return nil
	})
	if a.budget != nil {
		stats.MemtableUsage = a.budget.MemtableUsage()
	}
	return stats
}
