package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)


func TestTestCommandArguments(t *testing.T) {
	existing := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no directories", []string{}, "accepts 2 arg"},
		{"missing specs dir", []string{"/nonexistent/specs", existing}, "specs directory not found"},
		{"missing scenarios dir", []string{existing, "/nonexistent/scenarios"}, "scenarios directory not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runTestCommand(t, "text", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTestCommandNoScenarios(t *testing.T) {
	specsDir, scenariosDir := t.TempDir(), t.TempDir()

	output, err := runTestCommand(t, "text", specsDir, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found")

	output, err = runTestCommand(t, "json", specsDir, scenariosDir)
	require.NoError(t, err)
	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestHelpText(t *testing.T) {
	output, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)

	for _, want := range []string{"scenario", "position trace", "--update", "--filter", "specs-dir", "scenarios-dir"} {
		assert.Contains(t, output, want)
	}
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lists"), 0755))
	for _, name := range []string{"board-move.yaml", "board-swap.yml", "lists/lists-prepend.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"board-move.yaml", "board-swap.yml", "lists-prepend.yaml"}},
		{"board-*", []string{"board-move.yaml", "board-swap.yml"}},
		{"lists-*", []string{"lists-prepend.yaml"}},
		{"nothing-*", nil},
	}
	for _, tt := range tests {
		files, err := findScenarioFiles(dir, tt.filter)
		require.NoError(t, err)
		var names []string
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		assert.Equal(t, tt.want, names, "filter %q", tt.filter)
	}

	_, err := findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, "/specs/board/golden/reorder.golden", goldenFilePath("/specs/board/reorder.yaml"))
	assert.Equal(t, "scenarios/golden/swap.golden", goldenFilePath("scenarios/swap.yml"))
}

const boardSpec = `
collection: cards: {
	group_by: list_id: int
	start_position: 1
}
`

const boardScenario = `
name: board
description: "Cards are inserted and moved within a list"
specs:
  - board.cue
steps:
  - op: create
    collection: cards
    id: a
    group: { list_id: 1 }
  - op: create
    collection: cards
    id: b
    group: { list_id: 1 }
    position: 1
    expect:
      position: 1
  - op: move
    collection: cards
    id: b
    position: 0
    expect:
      position: 2
assertions:
  - type: positions
    collection: cards
    group: { list_id: 1 }
    order: [a, b]
  - type: dense
`

// writeScenarioFixture creates a specs dir and a scenarios dir holding one scenario.
func writeScenarioFixture(t *testing.T, scenario string) (specsDir, scenariosDir string) {
	t.Helper()
	tmpDir := t.TempDir()
	specsDir = filepath.Join(tmpDir, "specs")
	scenariosDir = filepath.Join(tmpDir, "scenarios")
	require.NoError(t, os.MkdirAll(specsDir, 0755))
	require.NoError(t, os.MkdirAll(scenariosDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(specsDir, "board.cue"), []byte(boardSpec), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(scenariosDir, "board.yaml"), []byte(scenario), 0644))
	return specsDir, scenariosDir
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	return runTestCommandWith(t, &RootOptions{Format: format}, args...)
}

func runTestCommandWith(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts.Logger = discardLogger()
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandPassingScenario(t *testing.T) {
	specsDir, scenariosDir := writeScenarioFixture(t, boardScenario)

	output, err := runTestCommand(t, "text", specsDir, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ board (3 steps, 2 records in 1 group(s))")
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, output, "[1] create")
}

func TestTestCommandVerbosePrintsTrace(t *testing.T) {
	specsDir, scenariosDir := writeScenarioFixture(t, boardScenario)

	output, err := runTestCommandWith(t, &RootOptions{Format: "text", Verbose: true}, specsDir, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, output, "  [1] create cards a -> 1\n")
	assert.Contains(t, output, "  [2] create cards b -> 1\n")
	assert.Contains(t, output, "  [3] move cards b -> 2\n")
}

func TestTestCommandScenarioJSON(t *testing.T) {
	specsDir, scenariosDir := writeScenarioFixture(t, boardScenario)

	output, err := runTestCommand(t, "json", specsDir, scenariosDir)
	require.NoError(t, err)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
	require.Len(t, response.Data.Scenarios, 1)
	got := response.Data.Scenarios[0]
	assert.Equal(t, "board", got.Name)
	assert.True(t, got.Pass)
	assert.Equal(t, 3, got.Steps)
	assert.Equal(t, 2, got.Records)
	assert.Equal(t, 1, got.Groups)
	assert.True(t, got.Dense)
	assert.Empty(t, got.Golden)
}

func TestTestCommandFailingScenario(t *testing.T) {
	failing := strings.Replace(boardScenario, "order: [a, b]", "order: [b, a]", 1)
	specsDir, scenariosDir := writeScenarioFixture(t, failing)

	output, err := runTestCommand(t, "text", specsDir, scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ board")
	assert.Contains(t, output, "Assertion failed: positions")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	failing := strings.Replace(boardScenario, "order: [a, b]", "order: [b, a]", 1)
	specsDir, scenariosDir := writeScenarioFixture(t, failing)

	output, err := runTestCommand(t, "json", specsDir, scenariosDir)
	require.Error(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "E_TEST_FAILED", response.Error.Code)
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	specsDir, scenariosDir := writeScenarioFixture(t, boardScenario)

	output, err := runTestCommand(t, "text", specsDir, scenariosDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "golden updated")

	goldenPath := filepath.Join(scenariosDir, "golden", "board.golden")
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"board"`)

	output, err = runTestCommand(t, "text", specsDir, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, output, "golden match")
}

func TestTestCommandGoldenMismatchNamesStep(t *testing.T) {
	specsDir, scenariosDir := writeScenarioFixture(t, boardScenario)
	_, err := runTestCommand(t, "text", specsDir, scenariosDir, "--update")
	require.NoError(t, err)

	// Appending b instead of inserting it at 1 changes the position stored by
	// step 2 while the final order stays the same.
	appended := strings.Replace(boardScenario, "    position: 1\n    expect:\n      position: 1\n", "", 1)
	require.NoError(t, os.WriteFile(filepath.Join(scenariosDir, "board.yaml"), []byte(appended), 0644))

	output, err := runTestCommand(t, "text", specsDir, scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "golden mismatch")
	assert.Contains(t, output, "snapshot does not match golden file")
	assert.Contains(t, output, "step 2 (create b): golden position 1, got 2")
	assert.NotContains(t, output, "cards list_id=1: golden")
}

func TestTestCommandGoldenMismatchNamesFinalOrder(t *testing.T) {
	specsDir, scenariosDir := writeScenarioFixture(t, boardScenario)
	goldenDir := filepath.Join(scenariosDir, "golden")
	require.NoError(t, os.MkdirAll(goldenDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "board.golden"),
		[]byte(`{"scenario_name":"board","state":{"cards":[{"group":"list_id=1","id":"b","position":1},{"group":"list_id=1","id":"a","position":2}]},"trace":[]}`), 0644))

	output, err := runTestCommand(t, "text", specsDir, scenariosDir)
	require.Error(t, err)
	assert.Contains(t, output, "step 1 (create a): not in golden file")
	assert.Contains(t, output, "cards list_id=1: golden [b@1 a@2], got [a@1 b@2]")
}

func TestTestCommandLoadError(t *testing.T) {
	specsDir, scenariosDir := writeScenarioFixture(t, "name: broken\n")

	output, err := runTestCommand(t, "text", specsDir, scenariosDir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ board.yaml")
	assert.Contains(t, output, "load error")
}
