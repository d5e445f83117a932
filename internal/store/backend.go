package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/position"
	"github.com/roach88/ordinal/internal/queryir"
)

// backend implements position.Backend over the store's current connection.
// Lifecycle hooks receive one bound to the operation's transaction, so
// their reads and shifts see the row the operation just wrote.
type backend struct {
	s *Store
	q querier
}

var _ position.Backend = (*backend)(nil)

func (s *Store) backend(ctx context.Context) *backend {
	return &backend{s: s, q: s.conn(ctx)}
}

func (b *backend) table(collection string) (string, error) {
	spec, ok := b.s.spec(collection)
	if !ok {
		return "", fmt.Errorf("collection %q: %w", collection, ErrUnknownCollection)
	}
	return spec.Table, nil
}

// scopeFilter selects the scope's group, minus the excluded record.
func scopeFilter(scope position.Scope) queryir.Predicate {
	var exclude queryir.Predicate
	if scope.Exclude != "" {
		exclude = queryir.NotEquals{Field: colID, Value: ir.IRString(scope.Exclude)}
	}
	return queryir.AllOf(queryir.GroupFilter(scope.Group), exclude)
}

// rangeFilter translates a position range into comparisons.
func rangeFilter(rng position.Range) queryir.Predicate {
	var preds []queryir.Predicate
	if rng.From != nil {
		op := queryir.OpGreater
		if rng.FromInclusive {
			op = queryir.OpGreaterEqual
		}
		preds = append(preds, queryir.Compare{Field: colPosition, Op: op, Value: ir.IRInt(*rng.From)})
	}
	if rng.To != nil {
		op := queryir.OpLess
		if rng.ToInclusive {
			op = queryir.OpLessEqual
		}
		preds = append(preds, queryir.Compare{Field: colPosition, Op: op, Value: ir.IRInt(*rng.To)})
	}
	return queryir.AllOf(preds...)
}

func (b *backend) MaxPosition(ctx context.Context, scope position.Scope) (int64, bool, error) {
	table, err := b.table(scope.Collection)
	if err != nil {
		return 0, false, err
	}
	query, params, err := b.s.compiler.Compile(queryir.Aggregate{
		From:   table,
		Func:   queryir.AggMax,
		Field:  colPosition,
		Filter: scopeFilter(scope),
	})
	if err != nil {
		return 0, false, fmt.Errorf("compile max position: %w", err)
	}

	var last sql.NullInt64
	if err := b.q.QueryRowContext(ctx, query, params...).Scan(&last); err != nil {
		return 0, false, fmt.Errorf("query max position: %w", err)
	}
	return last.Int64, last.Valid, nil
}

func (b *backend) Count(ctx context.Context, scope position.Scope) (int64, error) {
	table, err := b.table(scope.Collection)
	if err != nil {
		return 0, err
	}
	query, params, err := b.s.compiler.Compile(queryir.Aggregate{
		From:   table,
		Func:   queryir.AggCount,
		Filter: scopeFilter(scope),
	})
	if err != nil {
		return 0, fmt.Errorf("compile count: %w", err)
	}

	var n int64
	if err := b.q.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("query count: %w", err)
	}
	return n, nil
}

// Shift issues one UPDATE for the whole range.
func (b *backend) Shift(ctx context.Context, scope position.Scope, rng position.Range, delta int64) (n int64, err error) {
	ctx, span := b.s.startSpan(ctx, "store.shift",
		trace.WithAttributes(
			AttrCollection.String(scope.Collection),
			AttrGroup.String(scope.Group.String()),
			AttrShiftRange.String(rng.String()),
			AttrShiftDelta.Int64(delta),
		))
	defer func() {
		recordError(span, err)
		span.SetAttributes(AttrAffected.Int64(n))
		span.End()
	}()

	table, err := b.table(scope.Collection)
	if err != nil {
		return 0, err
	}
	filter := queryir.AllOf(scopeFilter(scope), rangeFilter(rng))
	if filter == nil {
		filter = queryir.And{}
	}
	query, params, err := b.s.compiler.Compile(queryir.Update{
		Table:  table,
		Field:  colPosition,
		Delta:  delta,
		Filter: filter,
	})
	if err != nil {
		return 0, fmt.Errorf("compile shift: %w", err)
	}

	res, err := b.q.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("exec shift: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
