// Package queryir provides an abstract query intermediate representation
// for reading and bulk-updating positioned collections.
//
// QueryIR is the boundary between code that decides WHAT to read or shift
// (the store's Backend implementation) and the backend that renders it
// (internal/querysql for SQLite):
//
//	[store] → [Query IR] → [SQL Backend]
//
// QUERY NODES:
//
//   - Select(from, columns, filter, order) - row access with ordering
//   - Aggregate(from, func, field, filter) - COUNT / MAX / MIN over a filter
//   - Update(table, field, delta, filter) - bulk "field = field + delta"
//
// Update is deliberately narrow: it can only add a constant to one integer
// column. That is the only bulk write position maintenance needs, and
// restricting it keeps every shift a single range statement.
//
// PREDICATES:
//
//   - Equals, NotEquals - field compared to a literal
//   - IsNull - field IS NULL (group columns may be NULL)
//   - Compare - field <, <=, >, >= literal
//   - And - conjunction
//
// There is no OR: a shift is always "this group, this range, not this record".
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods, so backends can use
// exhaustive type switches:
//
//	switch q := query.(type) {
//	case Select:
//	case Aggregate:
//	case Update:
//	}
//
// Field and table names are interpolated into SQL by backends, so Validate
// rejects anything that is not a plain identifier. Values are always
// parameters.
package queryir
