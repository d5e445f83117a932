package queryir

import "github.com/roach88/ordinal/internal/ir"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// OrderTerm is one ORDER BY component.
type OrderTerm struct {
	Field string
	Desc  bool
}

// Select reads rows from a table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order>, id
//
// Backends must append a deterministic tiebreaker after OrderBy so that
// equal positions (possible mid-operation) still read in a stable order.
type Select struct {
	From    string      // Table name
	Columns []string    // Explicit column list (empty = all columns)
	Filter  Predicate   // WHERE conditions (nil = no filter)
	OrderBy []OrderTerm // Requested order, before the id tiebreaker
}

func (Select) queryNode() {}

// AggFunc names an aggregate function.
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggMax   AggFunc = "MAX"
	AggMin   AggFunc = "MIN"
)

// Aggregate computes a single value over the filtered rows.
//
// Semantics:
//
//	SELECT <func>(<field>) FROM <from> WHERE <filter>
//
// COUNT ignores Field and counts rows. MAX and MIN yield NULL over an
// empty row set; callers must scan into a nullable value.
type Aggregate struct {
	From   string
	Func   AggFunc
	Field  string
	Filter Predicate
}

func (Aggregate) queryNode() {}

// Update adds Delta to Field for every row matching Filter.
//
// Semantics:
//
//	UPDATE <table> SET <field> = <field> + <delta> WHERE <filter>
//
// This is a single bulk statement; backends must not loop per row.
type Update struct {
	Table  string
	Field  string
	Delta  int64
	Filter Predicate
}

func (Update) queryNode() {}

// Equals is "<field> = <value>".
// A NULL value never matches; use IsNull for NULL group columns.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// NotEquals is "<field> <> <value>".
type NotEquals struct {
	Field string
	Value ir.IRValue
}

func (NotEquals) predicateNode() {}

// IsNull is "<field> IS NULL".
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// CompareOp is an ordering comparison operator.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
)

// Compare is "<field> <op> <value>".
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.IRValue
}

func (Compare) predicateNode() {}

// And requires every predicate to hold. An empty And is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// GroupFilter builds the predicate selecting one group.
// IRNull values compile to IsNull so NULL group columns still scope correctly.
// The implicit group (empty key) yields nil.
func GroupFilter(key ir.GroupKey) Predicate {
	if len(key) == 0 {
		return nil
	}
	preds := make([]Predicate, 0, len(key))
	for _, f := range key {
		if ir.IsNull(f.Value) {
			preds = append(preds, IsNull{Field: f.Name})
			continue
		}
		preds = append(preds, Equals{Field: f.Name, Value: f.Value})
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return And{Predicates: preds}
}

// AllOf combines predicates, dropping nils and flattening nested And nodes.
// Returns nil when nothing remains.
func AllOf(preds ...Predicate) Predicate {
	var out []Predicate
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
			continue
		case And:
			out = append(out, v.Predicates...)
		case *And:
			out = append(out, v.Predicates...)
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return And{Predicates: out}
	}
}
