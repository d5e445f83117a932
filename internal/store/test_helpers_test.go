package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
// Record IDs are sequential unless opts replace the generator.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithIDGenerator(testutil.NewSequentialIDGenerator("rec"))}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tasksSpec is an ungrouped collection starting at 1.
func tasksSpec() ir.CollectionSpec {
	return ir.CollectionSpec{Name: "tasks", StartPosition: 1, DefaultOrder: true}
}

// itemsSpec is grouped by list_id starting at 1.
func itemsSpec() ir.CollectionSpec {
	return ir.CollectionSpec{
		Name:          "items",
		GroupBy:       []ir.GroupColumn{{Name: "list_id", Type: ir.ColumnInt}},
		StartPosition: 1,
		DefaultOrder:  true,
	}
}

func listGroup(id int64) ir.GroupKey {
	return ir.GroupKey{{Name: "list_id", Value: ir.IRInt(id)}}
}

func registerTest(t *testing.T, s *Store, spec ir.CollectionSpec) *Collection {
	t.Helper()
	c, err := s.Register(context.Background(), spec)
	require.NoError(t, err)
	return c
}

// seed creates one record per id, each appended to group.
func seed(t *testing.T, c *Collection, group ir.GroupKey, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := c.Create(context.Background(), ir.Record{ID: id, Group: group})
		require.NoError(t, err)
	}
}

// order returns the IDs of group in position order.
func order(t *testing.T, c *Collection, group ir.GroupKey) []string {
	t.Helper()
	recs, err := c.List(context.Background(), group, OrderAscending)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

// positions returns id -> position for group.
func positions(t *testing.T, c *Collection, group ir.GroupKey) map[string]int64 {
	t.Helper()
	recs, err := c.List(context.Background(), group, OrderAscending)
	require.NoError(t, err)
	out := make(map[string]int64, len(recs))
	for _, r := range recs {
		out[r.ID] = *r.Position
	}
	return out
}

// requireDense fails unless the collection has no density violations.
func requireDense(t *testing.T, c *Collection) {
	t.Helper()
	v, err := c.Check(context.Background())
	require.NoError(t, err)
	require.Empty(t, v, "density violations")
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
