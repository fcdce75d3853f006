/*
Package partition implements the deterministic state machine at the core
of a single partition: given a Command and a read-only view of durable
state, Apply computes the Effects that must be written atomically with
the command's own durability. Apply performs no I/O and touches no global
state, so replaying the same command log against the same initial state
always reproduces the same effects.

A StateMachine only owns the two sequence counters (inbox and outbox);
everything else it needs is read through StateReader, which callers
implement on top of their storage layer (see pkg/rocksdb).
*/
package partition
