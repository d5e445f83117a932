package queryir

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/ordinal/internal/ir"
)

// identifierPattern matches names that are safe to interpolate into SQL.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether name may be used as a table or column name.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ValidationResult contains the problems found in a query.
//
// Backends interpolate table and field names directly, so a query with
// any problem must not be compiled.
type ValidationResult struct {
	// IsValid is true when Problems is empty.
	IsValid bool

	// Problems lists every structural issue, in traversal order.
	Problems []string
}

// Err returns nil for a valid result, otherwise an error joining all problems.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return errors.New("invalid query: " + strings.Join(r.Problems, "; "))
}

// Validate checks a query for structural problems.
//
// Rules:
//  1. Every table and field name is a plain identifier
//  2. Aggregate MAX/MIN name a field; Func is a known function
//  3. Update has a non-zero delta and a filter (no unscoped bulk writes)
//  4. Compare uses a known operator
//  5. Predicate values are scalars (arrays and objects cannot be parameters)
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) checkIdent(kind, name string) {
	if !IsIdentifier(name) {
		v.addProblem("invalid %s name %q", kind, name)
	}
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addProblem("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Aggregate:
		v.validateAggregate(query)
	case *Aggregate:
		v.validateAggregate(*query)
	case Update:
		v.validateUpdate(query)
	case *Update:
		v.validateUpdate(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.checkIdent("table", sel.From)
	for _, col := range sel.Columns {
		v.checkIdent("column", col)
	}
	for _, term := range sel.OrderBy {
		v.checkIdent("order", term.Field)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validateAggregate(agg Aggregate) {
	v.checkIdent("table", agg.From)
	switch agg.Func {
	case AggCount:
		if agg.Field != "" {
			v.checkIdent("field", agg.Field)
		}
	case AggMax, AggMin:
		if agg.Field == "" {
			v.addProblem("%s requires a field", agg.Func)
		} else {
			v.checkIdent("field", agg.Field)
		}
	default:
		v.addProblem("unknown aggregate function %q", agg.Func)
	}
	v.validatePredicate(agg.Filter)
}

func (v *validator) validateUpdate(upd Update) {
	v.checkIdent("table", upd.Table)
	v.checkIdent("field", upd.Field)
	if upd.Delta == 0 {
		v.addProblem("update of %s has zero delta", upd.Field)
	}
	if upd.Filter == nil {
		v.addProblem("update of %s.%s has no filter", upd.Table, upd.Field)
		return
	}
	v.validatePredicate(upd.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return // nil predicates are valid (no filter)
	}

	switch pred := p.(type) {
	case Equals:
		v.validateComparand(pred.Field, pred.Value)
	case *Equals:
		v.validateComparand(pred.Field, pred.Value)
	case NotEquals:
		v.validateComparand(pred.Field, pred.Value)
	case *NotEquals:
		v.validateComparand(pred.Field, pred.Value)
	case IsNull:
		v.checkIdent("field", pred.Field)
	case *IsNull:
		v.checkIdent("field", pred.Field)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateComparand(field string, value ir.IRValue) {
	v.checkIdent("field", field)
	switch value.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case nil:
		v.addProblem("field %q compared to nil value", field)
	case ir.IRNull:
		v.addProblem("field %q compared to NULL (use IsNull)", field)
	default:
		v.addProblem("field %q compared to non-scalar %T", field, value)
	}
}

func (v *validator) validateCompare(c Compare) {
	switch c.Op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
	default:
		v.addProblem("unknown comparison operator %q", c.Op)
	}
	v.validateComparand(c.Field, c.Value)
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
