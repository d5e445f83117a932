package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/position"
	"github.com/roach88/ordinal/internal/queryir"
	"github.com/roach88/ordinal/internal/querysql"
)

// Order selects the read order of List.
type Order int

const (
	// OrderDefault reads in position order when the collection sets
	// default_order, otherwise in insertion order.
	OrderDefault Order = iota
	OrderAscending
	OrderDescending
)

func (o Order) String() string {
	switch o {
	case OrderAscending:
		return "asc"
	case OrderDescending:
		return "desc"
	default:
		return "default"
	}
}

// Collection is a handle for one registered collection.
//
// Every mutating operation runs in one transaction (or joins the caller's,
// see Store.WithTx) and invokes the store's lifecycle listener inside it,
// so a failed shift rolls back the write that caused it.
type Collection struct {
	s    *Store
	spec ir.CollectionSpec
}

// Spec returns the collection definition.
func (c *Collection) Spec() ir.CollectionSpec {
	return c.spec
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.spec.Name
}

// Change describes an update. Nil fields are left unchanged.
type Change struct {
	// Position is the new raw position (absolute, or relative below start).
	Position *int64

	// Group holds group column values to change. Columns not listed keep
	// their current value. When the group changes and Position is nil the
	// record is appended to its new group.
	Group ir.GroupKey

	// Attrs replaces the record's attributes.
	Attrs ir.IRObject
}

func (c *Collection) spanStart(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{AttrCollection.String(c.spec.Name)}, attrs...)
	return c.s.startSpan(ctx, "store."+op, trace.WithAttributes(attrs...))
}

// Create inserts rec. When rec.Position is nil the collection's
// next-position policy (or a force) places it; otherwise rec.Position is
// normalized and siblings at or after it move one step later.
// An empty rec.ID is filled from the store's ID generator.
func (c *Collection) Create(ctx context.Context, rec ir.Record) (_ ir.Record, err error) {
	ctx, span := c.spanStart(ctx, "Create")
	defer func() {
		recordError(span, err)
		span.End()
	}()

	rec = rec.Clone()
	rec.Collection = c.spec.Name
	rec.Exists = false
	if rec.ID == "" {
		rec.ID = c.s.ids.Generate()
	}
	if rec.Attrs == nil {
		rec.Attrs = ir.IRObject{}
	}
	if err := c.checkGroup(rec.Group); err != nil {
		return ir.Record{}, err
	}
	span.SetAttributes(AttrRecordID.String(rec.ID))

	err = c.s.WithTx(ctx, func(ctx context.Context) error {
		b := c.s.backend(ctx)
		if err := c.s.listener.BeforeSave(ctx, b, &rec, nil); err != nil {
			return fmt.Errorf("before save: %w", err)
		}
		if err := c.insert(ctx, rec); err != nil {
			return err
		}
		rec.Exists = true
		if err := c.s.listener.AfterCreate(ctx, b, rec); err != nil {
			return fmt.Errorf("after create: %w", err)
		}
		return nil
	})
	if err != nil {
		return ir.Record{}, fmt.Errorf("create in %s: %w", c.spec.Name, err)
	}

	span.SetAttributes(AttrPosition.Int64(*rec.Position), AttrGroup.String(rec.Group.String()))
	c.s.logger.Debug("record created",
		"collection", c.spec.Name,
		"id", rec.ID,
		"group", rec.Group.String(),
		"position", *rec.Position,
		"terminal", rec.Terminal)
	return rec, nil
}

// Update applies ch to the record with the given ID.
func (c *Collection) Update(ctx context.Context, id string, ch Change) (_ ir.Record, err error) {
	ctx, span := c.spanStart(ctx, "Update", AttrRecordID.String(id))
	defer func() {
		recordError(span, err)
		span.End()
	}()

	if err := c.checkGroup(ch.Group); err != nil {
		return ir.Record{}, err
	}

	var rec ir.Record
	err = c.s.WithTx(ctx, func(ctx context.Context) error {
		orig, err := c.get(ctx, id)
		if err != nil {
			return err
		}

		rec = orig.Clone()
		if ch.Attrs != nil {
			rec.Attrs = ch.Attrs
		}
		regrouped := false
		if len(ch.Group) > 0 {
			rec.Group = mergeGroup(orig.Group, ch.Group)
			regrouped = !rec.Group.Equal(orig.Group)
		}
		switch {
		case ch.Position != nil:
			rec.SetPosition(*ch.Position)
		case regrouped:
			rec.Position = nil
		}

		return c.save(ctx, &rec, orig)
	})
	if err != nil {
		return ir.Record{}, fmt.Errorf("update %s in %s: %w", id, c.spec.Name, err)
	}

	span.SetAttributes(AttrPosition.Int64(*rec.Position), AttrGroup.String(rec.Group.String()))
	return rec, nil
}

// Move sets the record's position (absolute, or relative below start).
func (c *Collection) Move(ctx context.Context, id string, pos int64) (ir.Record, error) {
	return c.Update(ctx, id, Change{Position: &pos})
}

// save runs the update lifecycle for rec against its stored original.
func (c *Collection) save(ctx context.Context, rec *ir.Record, orig ir.Record) error {
	b := c.s.backend(ctx)
	if err := c.s.listener.BeforeSave(ctx, b, rec, &orig); err != nil {
		return fmt.Errorf("before save: %w", err)
	}
	if err := c.write(ctx, *rec); err != nil {
		return err
	}
	if err := c.s.listener.AfterUpdate(ctx, b, *rec, orig); err != nil {
		return fmt.Errorf("after update: %w", err)
	}
	c.s.logger.Debug("record updated",
		"collection", c.spec.Name,
		"id", rec.ID,
		"group", rec.Group.String(),
		"from", orig.Position,
		"position", *rec.Position)
	return nil
}

// Delete removes the record and closes the gap it leaves in its group.
func (c *Collection) Delete(ctx context.Context, id string) (err error) {
	ctx, span := c.spanStart(ctx, "Delete", AttrRecordID.String(id))
	defer func() {
		recordError(span, err)
		span.End()
	}()

	err = c.s.WithTx(ctx, func(ctx context.Context) error {
		rec, err := c.get(ctx, id)
		if err != nil {
			return err
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.spec.Table, colID)
		if _, err := c.s.conn(ctx).ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("delete row: %w", err)
		}
		if err := c.s.listener.AfterDelete(ctx, c.s.backend(ctx), rec); err != nil {
			return fmt.Errorf("after delete: %w", err)
		}
		c.s.logger.Debug("record deleted",
			"collection", c.spec.Name,
			"id", id,
			"group", rec.Group.String(),
			"position", *rec.Position)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s from %s: %w", id, c.spec.Name, err)
	}
	return nil
}

// Swap exchanges the positions of two records of the same group.
//
// Both saves run with shifting locked for the collection, so no other
// record is read or written.
func (c *Collection) Swap(ctx context.Context, idA, idB string) (err error) {
	ctx, span := c.spanStart(ctx, "Swap", AttrRecordID.String(idA), AttrRecordID.String(idB))
	defer func() {
		recordError(span, err)
		span.End()
	}()

	// The swap lock lives on a private copy so concurrent writers sharing
	// the store's controls keep shifting.
	controls := c.s.controlsFor(ctx).Clone()
	ctx = position.WithControls(ctx, controls)

	err = c.s.WithTx(ctx, func(ctx context.Context) error {
		a, err := c.get(ctx, idA)
		if err != nil {
			return err
		}
		b, err := c.get(ctx, idB)
		if err != nil {
			return err
		}
		if !a.Group.Equal(b.Group) {
			return fmt.Errorf("%w: %s in %s, %s in %s", ErrCrossGroupSwap, idA, a.Group, idB, b.Group)
		}
		if idA == idB {
			return nil
		}

		return controls.WithLock(c.spec.Name, func() error {
			newA, newB := a.Clone(), b.Clone()
			newA.SetPosition(*b.Position)
			newB.SetPosition(*a.Position)
			if err := c.save(ctx, &newA, a); err != nil {
				return err
			}
			return c.save(ctx, &newB, b)
		})
	})
	if err != nil {
		return fmt.Errorf("swap %s and %s in %s: %w", idA, idB, c.spec.Name, err)
	}
	return nil
}

// Get returns the record with the given ID.
func (c *Collection) Get(ctx context.Context, id string) (_ ir.Record, err error) {
	ctx, span := c.spanStart(ctx, "Get", AttrRecordID.String(id))
	defer func() {
		recordError(span, err)
		span.End()
	}()
	return c.get(ctx, id)
}

// List returns the records of one group in the requested order. A nil
// group lists every group of a grouped collection; for position orders
// the rows are then sorted by group columns first.
func (c *Collection) List(ctx context.Context, group ir.GroupKey, order Order) (_ []ir.Record, err error) {
	ctx, span := c.spanStart(ctx, "List", AttrGroup.String(group.String()))
	defer func() {
		recordError(span, err)
		span.End()
	}()

	if err := c.checkGroup(group); err != nil {
		return nil, err
	}
	var filter queryir.Predicate
	if group != nil {
		filter = queryir.GroupFilter(c.groupKey(group))
	}
	recs, err := c.selectRecords(ctx, filter, c.orderTerms(order, group == nil))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(AttrResultCount.Int(len(recs)))
	return recs, nil
}

// Count returns the number of records in group, or in the whole
// collection when group is nil.
func (c *Collection) Count(ctx context.Context, group ir.GroupKey) (_ int64, err error) {
	ctx, span := c.spanStart(ctx, "Count", AttrGroup.String(group.String()))
	defer func() {
		recordError(span, err)
		span.End()
	}()

	if err := c.checkGroup(group); err != nil {
		return 0, err
	}
	return c.s.backend(ctx).Count(ctx, c.scope(group))
}

// Groups returns the distinct group keys present, sorted by group columns.
func (c *Collection) Groups(ctx context.Context) (_ []ir.GroupKey, err error) {
	ctx, span := c.spanStart(ctx, "Groups")
	defer func() {
		recordError(span, err)
		span.End()
	}()

	recs, err := c.selectRecords(ctx, nil, c.orderTerms(OrderAscending, true))
	if err != nil {
		return nil, err
	}
	var groups []ir.GroupKey
	seen := make(map[string]bool)
	for _, rec := range recs {
		h := rec.Group.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		groups = append(groups, rec.Group)
	}
	return groups, nil
}

// orderTerms builds the ORDER BY terms for a read.
func (c *Collection) orderTerms(order Order, allGroups bool) []queryir.OrderTerm {
	if order == OrderDefault && !c.spec.DefaultOrder {
		return []queryir.OrderTerm{{Field: colCreatedSeq}}
	}
	var terms []queryir.OrderTerm
	if allGroups {
		for _, col := range c.spec.GroupBy {
			terms = append(terms, queryir.OrderTerm{Field: col.Name})
		}
	}
	return append(terms, queryir.OrderTerm{Field: colPosition, Desc: order == OrderDescending})
}

func (c *Collection) scope(group ir.GroupKey) position.Scope {
	return position.Scope{Collection: c.spec.Name, Group: c.groupKey(group)}
}

// groupKey orders key by the collection's group columns, filling NULLs.
// A nil key stays nil and selects every group.
func (c *Collection) groupKey(key ir.GroupKey) ir.GroupKey {
	if len(c.spec.GroupBy) == 0 || key == nil {
		return nil
	}
	out := make(ir.GroupKey, len(c.spec.GroupBy))
	for i, col := range c.spec.GroupBy {
		out[i] = ir.GroupField{Name: col.Name, Value: key.Get(col.Name)}
	}
	return out
}

// checkGroup verifies key names only known group columns with values of
// the declared type (or NULL).
func (c *Collection) checkGroup(key ir.GroupKey) error {
	types := make(map[string]string, len(c.spec.GroupBy))
	for _, col := range c.spec.GroupBy {
		types[col.Name] = col.Type
	}
	for _, f := range key {
		typ, ok := types[f.Name]
		if !ok {
			return fmt.Errorf("%w: %s has no group column %q", ErrInvalidGroup, c.spec.Name, f.Name)
		}
		switch f.Value.(type) {
		case nil, ir.IRNull:
		case ir.IRString:
			if typ != ir.ColumnString {
				return fmt.Errorf("%w: column %q expects %s, got string", ErrInvalidGroup, f.Name, typ)
			}
		case ir.IRInt:
			if typ != ir.ColumnInt {
				return fmt.Errorf("%w: column %q expects %s, got int", ErrInvalidGroup, f.Name, typ)
			}
		default:
			return fmt.Errorf("%w: column %q has unsupported value %T", ErrInvalidGroup, f.Name, f.Value)
		}
	}
	return nil
}

// mergeGroup overlays changes on current, keeping current's column order.
func mergeGroup(current, changes ir.GroupKey) ir.GroupKey {
	out := append(ir.GroupKey(nil), current...)
	for _, ch := range changes {
		replaced := false
		for i := range out {
			if out[i].Name == ch.Name {
				out[i].Value = ch.Value
				replaced = true
			}
		}
		if !replaced {
			out = append(out, ch)
		}
	}
	return out
}

func (c *Collection) columns() []string {
	cols := []string{colID, colPosition}
	cols = append(cols, c.spec.GroupColumnNames()...)
	return append(cols, colAttrs)
}

func (c *Collection) insert(ctx context.Context, rec ir.Record) error {
	attrs, err := marshalAttrs(rec.Attrs)
	if err != nil {
		return err
	}
	args := []any{rec.ID, *rec.Position}
	groupArgs, err := c.groupArgs(rec.Group)
	if err != nil {
		return err
	}
	args = append(append(args, groupArgs...), attrs)

	cols := c.columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (%s, (SELECT COALESCE(MAX(%s), 0) + 1 FROM %s))",
		c.spec.Table, strings.Join(cols, ", "), colCreatedSeq,
		placeholders, colCreatedSeq, c.spec.Table)

	if _, err := c.s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrRecordExists, rec.ID)
		}
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

func (c *Collection) write(ctx context.Context, rec ir.Record) error {
	attrs, err := marshalAttrs(rec.Attrs)
	if err != nil {
		return err
	}
	groupArgs, err := c.groupArgs(rec.Group)
	if err != nil {
		return err
	}

	sets := []string{colPosition + " = ?"}
	for _, name := range c.spec.GroupColumnNames() {
		sets = append(sets, name+" = ?")
	}
	sets = append(sets, colAttrs+" = ?")

	args := append([]any{*rec.Position}, groupArgs...)
	args = append(args, attrs, rec.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", c.spec.Table, strings.Join(sets, ", "), colID)
	if _, err := c.s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	return nil
}

// groupArgs returns SQL parameters for the group columns in column order.
func (c *Collection) groupArgs(key ir.GroupKey) ([]any, error) {
	args := make([]any, 0, len(c.spec.GroupBy))
	for _, col := range c.spec.GroupBy {
		v := key.Get(col.Name)
		switch val := v.(type) {
		case ir.IRString:
			args = append(args, string(val))
		case ir.IRInt:
			args = append(args, int64(val))
		case ir.IRNull:
			args = append(args, nil)
		default:
			return nil, fmt.Errorf("%w: column %q has unsupported value %T", ErrInvalidGroup, col.Name, v)
		}
	}
	return args, nil
}

func (c *Collection) get(ctx context.Context, id string) (ir.Record, error) {
	recs, err := c.selectRecords(ctx, queryir.Equals{Field: colID, Value: ir.IRString(id)}, nil)
	if err != nil {
		return ir.Record{}, err
	}
	if len(recs) == 0 {
		return ir.Record{}, fmt.Errorf("%w: %s in %s", ErrNotFound, id, c.spec.Name)
	}
	return recs[0], nil
}

func (c *Collection) selectRecords(ctx context.Context, filter queryir.Predicate, order []queryir.OrderTerm) ([]ir.Record, error) {
	query, params, err := c.s.compiler.Compile(queryir.Select{
		From:    c.spec.Table,
		Columns: c.columns(),
		Filter:  filter,
		OrderBy: order,
	})
	if err != nil {
		return nil, fmt.Errorf("compile select: %w", err)
	}

	rows, err := c.s.conn(ctx).QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.spec.Table, err)
	}
	defer rows.Close()

	recs := []ir.Record{}
	for rows.Next() {
		rec, err := c.scan(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.spec.Table, err)
	}
	return recs, nil
}

func (c *Collection) scan(rows *sql.Rows) (ir.Record, error) {
	var (
		id    string
		pos   int64
		attrs string
	)
	groupVals := make([]any, len(c.spec.GroupBy))
	dest := []any{&id, &pos}
	for i := range groupVals {
		dest = append(dest, &groupVals[i])
	}
	dest = append(dest, &attrs)

	if err := rows.Scan(dest...); err != nil {
		return ir.Record{}, fmt.Errorf("scan %s: %w", c.spec.Table, err)
	}

	var group ir.GroupKey
	if len(c.spec.GroupBy) > 0 {
		group = make(ir.GroupKey, len(c.spec.GroupBy))
		for i, col := range c.spec.GroupBy {
			v, err := querysql.ParamToIRValue(groupVals[i])
			if err != nil {
				return ir.Record{}, fmt.Errorf("scan %s.%s: %w", c.spec.Table, col.Name, err)
			}
			group[i] = ir.GroupField{Name: col.Name, Value: v}
		}
	}

	obj, err := unmarshalAttrs(attrs)
	if err != nil {
		return ir.Record{}, err
	}

	return ir.Record{
		ID:         id,
		Collection: c.spec.Name,
		Position:   ir.Int64(pos),
		Group:      group,
		Attrs:      obj,
		Exists:     true,
	}, nil
}
