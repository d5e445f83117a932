package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordinal/internal/ir"
)

func TestSnapshotJSON_Deterministic(t *testing.T) {
	scenario := loadTestdata(t, "board_reorder")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := SnapshotJSON(scenario.Name, first)
	require.NoError(t, err)
	b, err := SnapshotJSON(scenario.Name, second)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"scenario_name":"board_reorder"`)
	assert.Contains(t, string(a), "different groups")
}

func TestSnapshotJSON_OmitsEmptyFields(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Seq: 1, Op: OpLock, Collection: "tasks"})

	data, err := SnapshotJSON("lock_only", result)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"op":"lock"`)
	assert.NotContains(t, s, `"position"`)
	assert.NotContains(t, s, `"error"`)
	assert.NotContains(t, s, `"group"`)
}

func TestAssertGolden_RoundTrip(t *testing.T) {
	fixtureDir := t.TempDir()
	scenario := &Scenario{
		Name:        "golden_roundtrip",
		Description: "Snapshot written then compared",
		Collections: []ir.CollectionSpec{tasksCollection()},
		Steps: []Step{
			{Op: OpCreate, Collection: "tasks", ID: "a"},
			{Op: OpCreate, Collection: "tasks", ID: "b", Position: ir.Int64(1)},
		},
		Assertions: []Assertion{{Type: AssertDense}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	data, err := SnapshotJSON(scenario.Name, result)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir(fixtureDir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, scenario.Name, data))

	err = RunWithGolden(t, scenario, goldie.WithFixtureDir(fixtureDir))
	require.NoError(t, err)
}

func TestParseSnapshot_MatchesRun(t *testing.T) {
	scenario := loadTestdata(t, "board_reorder")
	result, err := Run(scenario)
	require.NoError(t, err)

	data, err := SnapshotJSON(scenario.Name, result)
	require.NoError(t, err)
	parsed, err := ParseSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, "board_reorder", parsed.ScenarioName)
	assert.Len(t, parsed.Trace, 10)
	assert.Equal(t, result.State["cards"], parsed.State["cards"])
	assert.Empty(t, DiffSnapshots(parsed, NewSnapshot(scenario.Name, result)))
}

func TestParseSnapshot_Invalid(t *testing.T) {
	_, err := ParseSnapshot([]byte("not json"))
	assert.Error(t, err)
}

func TestDiffSnapshots(t *testing.T) {
	golden := &Snapshot{
		ScenarioName: "tasks",
		Trace: []TraceEvent{
			{Seq: 1, Op: OpCreate, Collection: "tasks", ID: "a", Position: ir.Int64(1)},
			{Seq: 2, Op: OpCreate, Collection: "tasks", ID: "b", Position: ir.Int64(1)},
		},
		State: map[string][]StateRow{"tasks": {
			{ID: "b", Group: "*", Position: 1},
			{ID: "a", Group: "*", Position: 2},
		}},
	}
	got := &Snapshot{
		ScenarioName: "tasks",
		Trace: []TraceEvent{
			{Seq: 1, Op: OpCreate, Collection: "tasks", ID: "a", Position: ir.Int64(1)},
			{Seq: 2, Op: OpCreate, Collection: "tasks", ID: "b", Position: ir.Int64(2)},
			{Seq: 3, Op: OpDelete, Collection: "tasks", ID: "c", Error: "record not found"},
		},
		State: map[string][]StateRow{"tasks": {
			{ID: "a", Group: "*", Position: 1},
			{ID: "b", Group: "*", Position: 2},
		}},
	}

	assert.Equal(t, []string{
		"step 2 (create b): golden position 1, got 2",
		"step 3 (delete c): not in golden file",
		"tasks *: golden [b@1 a@2], got [a@1 b@2]",
	}, DiffSnapshots(golden, got))

	assert.Equal(t, []string{
		"step 2 (create b): golden position 2, got 1",
		"step 3 (delete c): missing",
		"tasks *: golden [a@1 b@2], got [b@1 a@2]",
	}, DiffSnapshots(got, golden))
}

func TestSnapshotGaps(t *testing.T) {
	s := &Snapshot{State: map[string][]StateRow{
		"cards": {
			{ID: "a", Group: "list_id=1", Position: 1},
			{ID: "b", Group: "list_id=1", Position: 3},
			{ID: "c", Group: "list_id=2", Position: 0},
			{ID: "d", Group: "list_id=2", Position: 1},
		},
	}}

	assert.Equal(t, 4, s.Records())
	assert.Len(t, s.Groups(), 2)
	assert.Equal(t, []string{"cards list_id=1: positions [1 3]"}, s.Gaps())
}

func TestTraceEventString(t *testing.T) {
	assert.Equal(t, "[3] move cards b -> 2",
		TraceEvent{Seq: 3, Op: OpMove, Collection: "cards", ID: "b", Position: ir.Int64(2)}.String())
	assert.Equal(t, "[4] swap cards a b (error: cannot swap records in different groups)",
		TraceEvent{Seq: 4, Op: OpSwap, Collection: "cards", ID: "a", Other: "b",
			Error: "cannot swap records in different groups"}.String())
}
