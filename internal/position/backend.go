package position

import (
	"context"
	"fmt"

	"github.com/roach88/ordinal/internal/ir"
)

// Scope selects the members of one group of one collection, optionally
// excluding a single record (the one being inserted, moved or deleted).
type Scope struct {
	Collection string
	Group      ir.GroupKey
	Exclude    string // record ID; empty excludes nothing
}

// Includes reports whether a record with the given ID and group is in scope.
func (s Scope) Includes(id string, group ir.GroupKey) bool {
	if s.Exclude != "" && id == s.Exclude {
		return false
	}
	return s.Group.Equal(group)
}

// Range bounds the positions a shift applies to. A nil bound is unbounded.
type Range struct {
	From          *int64
	To            *int64
	FromInclusive bool
	ToInclusive   bool
}

// Contains reports whether p lies within the range.
func (r Range) Contains(p int64) bool {
	if r.From != nil {
		if r.FromInclusive && p < *r.From {
			return false
		}
		if !r.FromInclusive && p <= *r.From {
			return false
		}
	}
	if r.To != nil {
		if r.ToInclusive && p > *r.To {
			return false
		}
		if !r.ToInclusive && p >= *r.To {
			return false
		}
	}
	return true
}

// String renders the range in interval notation, e.g. "[2, 5)" or "(1, ∞)".
func (r Range) String() string {
	lo, hi := "-∞", "∞"
	open, closing := "(", ")"
	if r.From != nil {
		lo = fmt.Sprint(*r.From)
		if r.FromInclusive {
			open = "["
		}
	}
	if r.To != nil {
		hi = fmt.Sprint(*r.To)
		if r.ToInclusive {
			closing = "]"
		}
	}
	return open + lo + ", " + hi + closing
}

// Backend is the persistence capability the position core consumes.
//
// Implementations must evaluate every call against the same transactional
// view the surrounding save or delete uses.
type Backend interface {
	// MaxPosition returns the highest position in scope, or ok=false when
	// the scope has no members.
	MaxPosition(ctx context.Context, scope Scope) (last int64, ok bool, err error)

	// Count returns the number of members in scope.
	Count(ctx context.Context, scope Scope) (int64, error)

	// Shift adds delta to the position of every member in scope whose
	// position lies in rng, as one bulk update. Returns the affected count.
	Shift(ctx context.Context, scope Scope, rng Range, delta int64) (int64, error)
}

// Listener receives record lifecycle events from the persistence layer.
//
// The persistence layer calls BeforeSave before writing a created or updated
// record, then exactly one of the After hooks once the row is written, all
// within the same transaction. BeforeSave may rewrite rec.Position,
// rec.Group and rec.Terminal; the caller must persist the rewritten values.
// orig is nil for a record that does not exist yet.
type Listener interface {
	BeforeSave(ctx context.Context, b Backend, rec *ir.Record, orig *ir.Record) error
	AfterCreate(ctx context.Context, b Backend, rec ir.Record) error
	AfterUpdate(ctx context.Context, b Backend, rec ir.Record, orig ir.Record) error
	AfterDelete(ctx context.Context, b Backend, rec ir.Record) error
}
