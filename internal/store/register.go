package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/queryir"
)

// Fixed columns of every collection table.
const (
	colID         = "id"
	colPosition   = "position"
	colAttrs      = "attrs"
	colCreatedSeq = "created_seq"
)

// reservedColumns cannot be used as group column names.
var reservedColumns = map[string]bool{
	colID:         true,
	colPosition:   true,
	colAttrs:      true,
	colCreatedSeq: true,
}

// reservedTables cannot be used as collection tables.
var reservedTables = map[string]bool{
	"collections": true,
}

// Register creates the table for spec and records it in the catalog.
//
// Registering the same name again with an identical definition is a no-op;
// a different definition fails with ErrCollectionExists.
func (s *Store) Register(ctx context.Context, spec ir.CollectionSpec) (_ *Collection, err error) {
	ctx, span := s.startSpan(ctx, "store.Register",
		trace.WithAttributes(AttrCollection.String(spec.Name)))
	defer func() {
		recordError(span, err)
		span.End()
	}()

	if spec.Table == "" {
		spec.Table = spec.Name
	}
	if err := checkSpec(spec); err != nil {
		return nil, err
	}

	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal collection %q: %w", spec.Name, err)
	}

	if existing, ok := s.spec(spec.Name); ok {
		prev, err := json.Marshal(existing)
		if err != nil {
			return nil, fmt.Errorf("marshal collection %q: %w", spec.Name, err)
		}
		if !bytes.Equal(prev, data) {
			return nil, fmt.Errorf("collection %q: %w", spec.Name, ErrCollectionExists)
		}
		return &Collection{s: s, spec: existing}, nil
	}

	err = s.WithTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		if _, err := q.ExecContext(ctx, `
			INSERT INTO collections (name, table_name, spec, seq)
			VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM collections))
		`, spec.Name, spec.Table, string(data)); err != nil {
			return fmt.Errorf("insert catalog entry: %w", err)
		}
		if _, err := q.ExecContext(ctx, createTableSQL(spec)); err != nil {
			return fmt.Errorf("create table %s: %w", spec.Table, err)
		}
		if _, err := q.ExecContext(ctx, createIndexSQL(spec)); err != nil {
			return fmt.Errorf("create index on %s: %w", spec.Table, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", spec.Name, err)
	}

	s.addSpec(spec)
	s.logger.Info("collection registered",
		"collection", spec.Name,
		"table", spec.Table,
		"group_by", strings.Join(spec.GroupColumnNames(), ","),
		"start_position", spec.StartPosition)

	return &Collection{s: s, spec: spec}, nil
}

// checkSpec rejects definitions whose names cannot be interpolated safely
// or that collide with the fixed columns.
func checkSpec(spec ir.CollectionSpec) error {
	if !queryir.IsIdentifier(spec.Name) {
		return fmt.Errorf("%w: collection name %q", ErrInvalidSpec, spec.Name)
	}
	if !queryir.IsIdentifier(spec.Table) {
		return fmt.Errorf("%w: table name %q", ErrInvalidSpec, spec.Table)
	}
	if reservedTables[strings.ToLower(spec.Table)] {
		return fmt.Errorf("%w: table name %q is reserved", ErrInvalidSpec, spec.Table)
	}
	switch spec.Mode() {
	case ir.NextAppend, ir.NextPrepend:
	default:
		return fmt.Errorf("%w: next_position %q", ErrInvalidSpec, spec.NextPosition)
	}

	seen := make(map[string]bool, len(spec.GroupBy))
	for _, col := range spec.GroupBy {
		name := strings.ToLower(col.Name)
		switch {
		case !queryir.IsIdentifier(col.Name):
			return fmt.Errorf("%w: group column %q", ErrInvalidSpec, col.Name)
		case reservedColumns[name]:
			return fmt.Errorf("%w: group column %q is reserved", ErrInvalidSpec, col.Name)
		case seen[name]:
			return fmt.Errorf("%w: duplicate group column %q", ErrInvalidSpec, col.Name)
		}
		seen[name] = true
		switch col.Type {
		case ir.ColumnString, ir.ColumnInt:
		default:
			return fmt.Errorf("%w: group column %q has type %q", ErrInvalidSpec, col.Name, col.Type)
		}
	}
	return nil
}

func sqlType(columnType string) string {
	if columnType == ir.ColumnInt {
		return "INTEGER"
	}
	return "TEXT"
}

// createTableSQL returns the DDL for a collection table.
// Group columns are nullable: a NULL group value is a group of its own.
// There is no UNIQUE constraint on (group, position); positions collide
// transiently while a shift is in progress.
func createTableSQL(spec ir.CollectionSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", spec.Table)
	fmt.Fprintf(&b, "\t%s TEXT PRIMARY KEY,\n", colID)
	fmt.Fprintf(&b, "\t%s INTEGER NOT NULL,\n", colPosition)
	for _, col := range spec.GroupBy {
		fmt.Fprintf(&b, "\t%s %s,\n", col.Name, sqlType(col.Type))
	}
	fmt.Fprintf(&b, "\t%s TEXT NOT NULL DEFAULT '{}',\n", colAttrs)
	fmt.Fprintf(&b, "\t%s INTEGER NOT NULL\n", colCreatedSeq)
	b.WriteString(")")
	return b.String()
}

// createIndexSQL returns the DDL for the (group..., position) index that
// serves max/count reads and range shifts.
func createIndexSQL(spec ir.CollectionSpec) string {
	cols := append(spec.GroupColumnNames(), colPosition)
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_group_position ON %s (%s)",
		spec.Table, spec.Table, strings.Join(cols, ", "))
}
