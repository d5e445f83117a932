// Package position keeps an integer "position" column dense within groups.
//
// Consumers reorder records by changing one integer. This package decides,
// on every create, update, regroup and delete, which sibling records must be
// renumbered and issues the bulk range updates that do it, so that within
// each group positions stay exactly {start, start+1, ..., start+n-1}.
//
// ARCHITECTURE:
//
//	lifecycle event → Coordinator
//	                    ├─ Resolve   (no position given: max+1, policy or forced)
//	                    ├─ Normalize (raw < start: relative-from-end)
//	                    └─ ShiftToEnd / ShiftToStart → Backend.Shift
//
// The persistence collaborator implements Backend (reads: max, count;
// write: one bulk shift per call) and calls the Coordinator through the
// Listener interface around its own create/update/delete, inside its own
// transaction. Nothing in this package opens transactions or retries.
//
// PER-COLLECTION BEHAVIOR:
//
// Each collection is described by a Policy (start position, group key
// extraction, next-position strategy). SpecPolicy derives one from an
// ir.CollectionSpec; custom policies implement the interface directly.
// Policies are looked up by collection name in a Registry.
//
// LOCK AND FORCE:
//
// Controls carries shift suppression (lock) and next-position overrides
// (force) per collection. It is an explicit value, attached to a
// context.Context with WithControls; the Coordinator falls back to its own
// default Controls when the context carries none. Locks are reentrant and
// always restored, even when the locked operation panics.
//
// CONCURRENCY:
//
// Two concurrent inserts into the same group can both observe the same
// max position and store duplicates. Callers that write one group from
// several goroutines or processes must serialize those writes themselves
// (for SQLite, one write transaction per operation is enough).
package position
