package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordinal/internal/ir"
)

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	path := filepath.Join("testdata", "scenarios", name+".yaml")
	scenario, err := LoadScenarioWithBasePath(path, filepath.Dir(path))
	require.NoError(t, err)
	return scenario
}

func tasksCollection() ir.CollectionSpec {
	return ir.CollectionSpec{Name: "tasks", Table: "tasks", StartPosition: 1, DefaultOrder: true}
}

func TestRun_BoardReorder(t *testing.T) {
	result, err := Run(loadTestdata(t, "board_reorder"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Trace, 10)

	assert.Equal(t, []StateRow{
		{ID: "d", Group: "list_id=1", Position: 1},
		{ID: "c", Group: "list_id=1", Position: 2},
		{ID: "e", Group: "list_id=2", Position: 1},
		{ID: "b", Group: "list_id=2", Position: 2},
	}, result.State["cards"])
	assert.Empty(t, result.State["lists"])
}

func TestRun_RelativePositions(t *testing.T) {
	result, err := Run(loadTestdata(t, "relative_positions"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, OpMove, last.Op)
	assert.Contains(t, last.Error, "not found")
	assert.Nil(t, last.Position)
}

func TestRun_GeneratedIDs(t *testing.T) {
	scenario := &Scenario{
		Name:        "generated",
		Description: "IDs come from the sequential generator",
		Collections: []ir.CollectionSpec{tasksCollection()},
		IDPrefix:    "task",
		Steps: []Step{
			{Op: OpCreate, Collection: "tasks"},
			{Op: OpCreate, Collection: "tasks"},
		},
		Assertions: []Assertion{
			{Type: AssertPositions, Collection: "tasks", Order: []string{"task-0001", "task-0002"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "task-0001", result.Trace[0].ID)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
}

func TestRun_RepeatsSeqAndIDsAcrossRuns(t *testing.T) {
	scenario := &Scenario{
		Name:        "repeatable",
		Description: "Every run numbers steps and records from one",
		Collections: []ir.CollectionSpec{tasksCollection()},
		Steps: []Step{
			{Op: OpCreate, Collection: "tasks"},
			{Op: OpCreate, Collection: "tasks", Position: ir.Int64(1)},
			{Op: OpMove, Collection: "tasks", ID: "rec-0001", Position: ir.Int64(1)},
		},
		Assertions: []Assertion{{Type: AssertDense}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	require.Len(t, first.Trace, 3)
	for i, event := range first.Trace {
		assert.Equal(t, int64(i+1), event.Seq)
	}
	assert.Equal(t, "rec-0002", first.Trace[1].ID)
	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.State, second.State)
}

func TestRun_UnexpectedStepErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "Deleting an unknown record",
		Collections: []ir.CollectionSpec{tasksCollection()},
		Steps: []Step{
			{Op: OpDelete, Collection: "tasks", ID: "ghost"},
		},
		Assertions: []Assertion{{Type: AssertDense}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] delete: unexpected error")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := &Scenario{
		Name:        "no_error",
		Description: "A step expected to fail succeeds",
		Collections: []ir.CollectionSpec{tasksCollection()},
		Steps: []Step{
			{Op: OpCreate, Collection: "tasks", ID: "a", Expect: &ExpectClause{Error: "boom"}},
		},
		Assertions: []Assertion{{Type: AssertDense}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected error containing "boom", got success`)
}

func TestRun_PositionMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expected position differs",
		Collections: []ir.CollectionSpec{tasksCollection()},
		Steps: []Step{
			{Op: OpCreate, Collection: "tasks", ID: "a", Expect: &ExpectClause{Position: ir.Int64(5)}},
		},
		Assertions: []Assertion{{Type: AssertDense}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected position 5, got 1")
}

func TestRun_LockSkipsShifting(t *testing.T) {
	scenario := &Scenario{
		Name:        "locked",
		Description: "Inserts under lock leave duplicates behind",
		Collections: []ir.CollectionSpec{tasksCollection()},
		Steps: []Step{
			{Op: OpCreate, Collection: "tasks", ID: "a"},
			{Op: OpLock, Collection: "tasks"},
			{Op: OpCreate, Collection: "tasks", ID: "b", Position: ir.Int64(1)},
			{Op: OpUnlock, Collection: "tasks"},
			{Op: OpCreate, Collection: "tasks", ID: "c", Position: ir.Int64(1)},
		},
		Assertions: []Assertion{
			{Type: AssertCount, Collection: "tasks", Count: 3},
			{Type: AssertDense, Collection: "tasks"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: dense")
	assert.Equal(t, int64(1), *result.Trace[2].Position)
}

func TestRun_ForcePlacesNewRecords(t *testing.T) {
	scenario := &Scenario{
		Name:        "forced",
		Description: "Forced position overrides the append policy",
		Collections: []ir.CollectionSpec{tasksCollection()},
		Steps: []Step{
			{Op: OpCreate, Collection: "tasks", ID: "a"},
			{Op: OpCreate, Collection: "tasks", ID: "b"},
			{Op: OpForce, Collection: "tasks", Position: ir.Int64(1)},
			{Op: OpCreate, Collection: "tasks", ID: "c", Expect: &ExpectClause{Position: ir.Int64(1)}},
			{Op: OpUnforce, Collection: "tasks"},
			{Op: OpCreate, Collection: "tasks", ID: "d", Expect: &ExpectClause{Position: ir.Int64(4)}},
		},
		Assertions: []Assertion{
			{Type: AssertPositions, Collection: "tasks", Order: []string{"c", "a", "b", "d"}},
			{Type: AssertDense},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidSpecFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "Collection with a reserved group column",
		Collections: []ir.CollectionSpec{{
			Name:    "tasks",
			GroupBy: []ir.GroupColumn{{Name: "position", Type: ir.ColumnInt}},
		}},
		Steps:      []Step{{Op: OpCreate, Collection: "tasks"}},
		Assertions: []Assertion{{Type: AssertDense}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register collection")
}

func TestRun_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(loadTestdata(t, "relative_positions"), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scenario finished")
	assert.Contains(t, buf.String(), "scenario=relative_positions")
	assert.Contains(t, buf.String(), "step executed")
}
