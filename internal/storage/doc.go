// Package storage keeps the run -> message associations.
//
// Drivers:
//   - memory: process-local map (default)
//   - file: JSON Lines journal compacted into a snapshot
//   - sqlite: single database file (modernc.org/sqlite, no cgo)
//   - redis: one key per run, shared between replicas
//
// Every driver makes Put insert-if-absent so two concurrent first events for
// the same run agree on one message.
package storage
