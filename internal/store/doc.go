// Package store provides SQLite-backed durable storage for positioned
// collections.
//
// A collection is one table with a fixed column set:
//   - id: TEXT primary key (UUIDv7 unless the caller supplies one)
//   - position: INTEGER ordinal within the record's group
//   - one nullable column per group_by entry
//   - attrs: canonical JSON object of free-form attributes
//   - created_seq: logical insertion counter, the fallback read order
//
// Collection definitions live in the collections catalog table and are
// reloaded on Open.
//
// # Position Maintenance
//
// Every Create, Update, Move, Delete and Swap runs in one transaction. Inside
// it the store calls its position.Listener (a position.Coordinator unless
// replaced) with a Backend bound to that transaction, so the record write and
// the sibling shifts it causes commit or roll back together. Use WithTx to
// group several operations into one transaction.
//
// Shifts are single range UPDATEs compiled from queryir, so a move touches
// each affected row once regardless of group size.
//
// # Deterministic Reads
//
// All reads end with ORDER BY ..., id ASC COLLATE BINARY, so ties (which
// only exist while a group is not dense) have a stable order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
