package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/queryir"
)

// TiebreakColumn is appended to every row-returning ORDER BY.
const TiebreakColumn = "id"

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: every Select ends its ORDER BY with "id ASC COLLATE BINARY"
// so reads are deterministic even while positions are mid-shift.
// CRITICAL: all values are parameterized, never interpolated. Identifiers
// are interpolated only after queryir.Validate accepts them.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if err := queryir.Validate(q).Err(); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Aggregate:
		return c.compileAggregate(query)
	case *queryir.Aggregate:
		return c.compileAggregate(*query)
	case queryir.Update:
		return c.compileUpdate(query)
	case *queryir.Update:
		return c.compileUpdate(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// compileSelect compiles a queryir.Select to SQL.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	selectClause := "*"
	if len(q.Columns) > 0 {
		selectClause = strings.Join(q.Columns, ", ")
	}

	whereClause, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		selectClause,
		q.From,
		whereClause,
		c.stableOrderKey(q.OrderBy))

	return sql, params, nil
}

// compileAggregate compiles a queryir.Aggregate to SQL.
// Aggregates return exactly one row, so no ORDER BY is emitted.
func (c *SQLCompiler) compileAggregate(q queryir.Aggregate) (string, []any, error) {
	var expr string
	switch q.Func {
	case queryir.AggCount:
		expr = "COUNT(*)"
	case queryir.AggMax, queryir.AggMin:
		expr = fmt.Sprintf("%s(%s)", q.Func, q.Field)
	default:
		return "", nil, fmt.Errorf("unsupported aggregate: %s", q.Func)
	}

	whereClause, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("SELECT %s FROM %s%s", expr, q.From, whereClause), params, nil
}

// compileUpdate compiles a queryir.Update to one bulk UPDATE statement.
// The delta is the first parameter.
func (c *SQLCompiler) compileUpdate(q queryir.Update) (string, []any, error) {
	whereClause, filterParams, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s = %s + ?%s", q.Table, q.Field, q.Field, whereClause)
	params := append([]any{q.Delta}, filterParams...)

	return sql, params, nil
}

// compileWhere returns " WHERE ..." and its params, or "" for a nil filter.
func (c *SQLCompiler) compileWhere(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	filterSQL, params, err := c.compilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + filterSQL, params, nil
}

// stableOrderKey returns the ORDER BY clause body.
// MANDATORY: always ends with the id tiebreaker.
// Uses COLLATE BINARY for deterministic text ordering.
func (c *SQLCompiler) stableOrderKey(terms []queryir.OrderTerm) string {
	parts := make([]string, 0, len(terms)+1)
	for _, term := range terms {
		if term.Field == TiebreakColumn {
			continue
		}
		dir := "ASC"
		if term.Desc {
			dir = "DESC"
		}
		parts = append(parts, term.Field+" "+dir)
	}
	parts = append(parts, TiebreakColumn+" ASC COLLATE BINARY")
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a queryir.Predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil // Always true
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileBinary(pred.Field, "=", pred.Value)
	case *queryir.Equals:
		return c.compileBinary(pred.Field, "=", pred.Value)
	case queryir.NotEquals:
		return c.compileBinary(pred.Field, "<>", pred.Value)
	case *queryir.NotEquals:
		return c.compileBinary(pred.Field, "<>", pred.Value)
	case queryir.Compare:
		return c.compileBinary(pred.Field, string(pred.Op), pred.Value)
	case *queryir.Compare:
		return c.compileBinary(pred.Field, string(pred.Op), pred.Value)
	case queryir.IsNull:
		return pred.Field + " IS NULL", nil, nil
	case *queryir.IsNull:
		return pred.Field + " IS NULL", nil, nil
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileBinary compiles "field <op> ?".
func (c *SQLCompiler) compileBinary(field, op string, value ir.IRValue) (string, []any, error) {
	param, err := irValueToParam(value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

// compileAnd compiles an And predicate to conjunction with AND.
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any

	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
// Supports string, int, bool.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}

// ParamToIRValue converts a scanned SQLite column value back to an IRValue.
// SQLite returns INTEGER as int64 and TEXT as string or []byte.
func ParamToIRValue(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case int64:
		return ir.IRInt(val), nil
	case string:
		return ir.IRString(val), nil
	case []byte:
		return ir.IRString(string(val)), nil
	case bool:
		return ir.IRBool(val), nil
	default:
		return nil, fmt.Errorf("unsupported column value type: %T", v)
	}
}
