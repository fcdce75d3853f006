/*
Package rocksdb implements the embedded storage manager: a shared memory
budget, two priority worker pools for blocking disk work, a background
config watchdog, and a singleton Manager that ties them together.

The pack this project was built from carries no cgo RocksDB binding, so
the Access Layer is built on go.etcd.io/bbolt instead. The contract —
capacity and memtable-ceiling budgeting, priority-scheduled background
work, runtime-reconfigurable options propagated by a watchdog — is
unchanged; only the embedded engine underneath it differs.
*/
package rocksdb
