package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/store"
)

// setupAssertionStore returns a store with items a, b in list 1 and c in list 2.
func setupAssertionStore(t *testing.T) *AssertionContext {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	coll, err := st.Register(ctx, ir.CollectionSpec{
		Name:          "items",
		GroupBy:       []ir.GroupColumn{{Name: "list_id", Type: ir.ColumnInt}},
		StartPosition: 1,
	})
	require.NoError(t, err)

	for _, rec := range []struct {
		id   string
		list int64
	}{{"a", 1}, {"b", 1}, {"c", 2}} {
		_, err := coll.Create(ctx, ir.Record{
			ID:    rec.id,
			Group: ir.GroupKey{{Name: "list_id", Value: ir.IRInt(rec.list)}},
		})
		require.NoError(t, err)
	}

	return &AssertionContext{Store: st, Ctx: ctx}
}

func TestAssertPositions(t *testing.T) {
	actx := setupAssertionStore(t)

	err := assertPositions(nil, Assertion{
		Type:       AssertPositions,
		Collection: "items",
		Group:      map[string]interface{}{"list_id": 1},
		Order:      []string{"a", "b"},
	}, actx)
	assert.NoError(t, err)
}

func TestAssertPositions_AllGroups(t *testing.T) {
	actx := setupAssertionStore(t)

	err := assertPositions(nil, Assertion{
		Type:       AssertPositions,
		Collection: "items",
		Order:      []string{"a", "b", "c"},
	}, actx)
	assert.NoError(t, err)
}

func TestAssertPositions_WrongOrder(t *testing.T) {
	actx := setupAssertionStore(t)
	trace := []TraceEvent{{Seq: 1, Op: OpCreate, Collection: "items", ID: "a", Position: ir.Int64(1)}}

	err := assertPositions(trace, Assertion{
		Type:       AssertPositions,
		Collection: "items",
		Group:      map[string]interface{}{"list_id": 1},
		Order:      []string{"b", "a"},
	}, actx)
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertPositions, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "list_id=1")
	assert.Equal(t, "a@1 b@2", assertErr.Actual)
	assert.Contains(t, err.Error(), "[1] create items a -> 1")
}

func TestAssertPositions_EmptyGroup(t *testing.T) {
	actx := setupAssertionStore(t)

	err := assertPositions(nil, Assertion{
		Type:       AssertPositions,
		Collection: "items",
		Group:      map[string]interface{}{"list_id": 9},
		Order:      []string{},
	}, actx)
	assert.NoError(t, err)
}

func TestAssertPositions_UnknownCollection(t *testing.T) {
	actx := setupAssertionStore(t)

	err := assertPositions(nil, Assertion{Type: AssertPositions, Collection: "ghosts", Order: []string{}}, actx)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnknownCollection)
}

func TestAssertCount(t *testing.T) {
	actx := setupAssertionStore(t)

	assert.NoError(t, assertCount(nil, Assertion{
		Type: AssertCount, Collection: "items", Group: map[string]interface{}{"list_id": 2}, Count: 1,
	}, actx))
	assert.NoError(t, assertCount(nil, Assertion{Type: AssertCount, Collection: "items", Count: 3}, actx))

	err := assertCount(nil, Assertion{Type: AssertCount, Collection: "items", Count: 5}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 5 records in items (all groups)")
	assert.Contains(t, err.Error(), "Actual: 3 records")
}

func TestAssertDense(t *testing.T) {
	actx := setupAssertionStore(t)

	assert.NoError(t, assertDense(nil, Assertion{Type: AssertDense}, actx))
	assert.NoError(t, assertDense(nil, Assertion{Type: AssertDense, Collection: "items"}, actx))
}

func TestAssertDense_Gap(t *testing.T) {
	actx := setupAssertionStore(t)
	_, err := actx.Store.DB().Exec(`UPDATE items SET position = 5 WHERE id = 'b'`)
	require.NoError(t, err)

	err = assertDense(nil, Assertion{Type: AssertDense}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items list_id=1: positions [1 5], want 1..2")
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	actx := setupAssertionStore(t)

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertCount, Collection: "items", Count: 3},
		{Type: AssertCount, Collection: "items", Count: 1},
		{Type: "sorted"},
	}, actx)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "sorted"`)
}
