package harness

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ordinal/internal/ir"
)

// GoldenDir is the default fixture directory for golden snapshots.
const GoldenDir = "testdata/golden"

// Snapshot captures the trace and final state of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string                `json:"scenario_name"`
	Trace        []TraceEvent          `json:"trace"`
	State        map[string][]StateRow `json:"state"`
}

// NewSnapshot captures the trace and final state of result.
func NewSnapshot(scenarioName string, result *Result) *Snapshot {
	return &Snapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		State:        result.State,
	}
}

// ParseSnapshot decodes a golden file written by SnapshotJSON.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &s, nil
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq": event.Seq,
			"op":  event.Op,
		}
		if event.Collection != "" {
			eventMap["collection"] = event.Collection
		}
		if event.ID != "" {
			eventMap["id"] = event.ID
		}
		if event.Other != "" {
			eventMap["other"] = event.Other
		}
		if len(event.Group) > 0 {
			eventMap["group"] = event.Group
		}
		if event.Position != nil {
			eventMap["position"] = *event.Position
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	state := make(map[string]any, len(s.State))
	for name, rows := range s.State {
		list := make([]any, len(rows))
		for i, row := range rows {
			list[i] = map[string]any{
				"id":       row.ID,
				"group":    row.Group,
				"position": row.Position,
			}
		}
		state[name] = list
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"state":         state,
	}
}

// SnapshotJSON renders a result as canonical JSON.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(NewSnapshot(scenarioName, result).toCanonicalMap())
}

// Records returns the number of records in the final state.
func (s *Snapshot) Records() int {
	n := 0
	for _, rows := range s.State {
		n += len(rows)
	}
	return n
}

// Groups returns the final positions of each group, keyed by
// "collection group". Positions keep the state's order.
func (s *Snapshot) Groups() map[string][]int64 {
	groups := make(map[string][]int64)
	for name, rows := range s.State {
		for _, row := range rows {
			key := name + " " + row.Group
			groups[key] = append(groups[key], row.Position)
		}
	}
	return groups
}

// Gaps reports every group of the final state whose positions are not
// consecutive, sorted by collection and group.
func (s *Snapshot) Gaps() []string {
	var gaps []string
	groups := s.Groups()
	for _, key := range sortedKeys(groups) {
		positions := groups[key]
		for i := 1; i < len(positions); i++ {
			if positions[i] != positions[i-1]+1 {
				gaps = append(gaps, fmt.Sprintf("%s: positions %v", key, positions))
				break
			}
		}
	}
	return gaps
}

// DiffSnapshots describes how got departs from want: first step by step
// (operation, stored position, error), then by the final order of each
// group. It returns nil when both agree on all of those.
func DiffSnapshots(want, got *Snapshot) []string {
	var diffs []string
	if want.ScenarioName != got.ScenarioName {
		diffs = append(diffs, fmt.Sprintf("scenario name: golden %q, got %q", want.ScenarioName, got.ScenarioName))
	}

	steps := max(len(want.Trace), len(got.Trace))
	for i := 0; i < steps; i++ {
		switch {
		case i >= len(want.Trace):
			diffs = append(diffs, fmt.Sprintf("step %d (%s %s): not in golden file", i+1, got.Trace[i].Op, got.Trace[i].ID))
		case i >= len(got.Trace):
			diffs = append(diffs, fmt.Sprintf("step %d (%s %s): missing", i+1, want.Trace[i].Op, want.Trace[i].ID))
		default:
			diffs = append(diffs, diffStep(i+1, want.Trace[i], got.Trace[i])...)
		}
	}

	wantOrder, gotOrder := finalOrder(want), finalOrder(got)
	keys := sortedKeys(wantOrder)
	for key := range gotOrder {
		if _, ok := wantOrder[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		w, g := strings.Join(wantOrder[key], " "), strings.Join(gotOrder[key], " ")
		if w != g {
			diffs = append(diffs, fmt.Sprintf("%s: golden [%s], got [%s]", key, w, g))
		}
	}
	return diffs
}

func diffStep(n int, want, got TraceEvent) []string {
	if want.Op != got.Op || want.ID != got.ID || want.Other != got.Other {
		return []string{fmt.Sprintf("step %d: golden %s %s %s, got %s %s %s",
			n, want.Op, want.ID, want.Other, got.Op, got.ID, got.Other)}
	}
	var diffs []string
	if w, g := formatPosition(want.Position), formatPosition(got.Position); w != g {
		diffs = append(diffs, fmt.Sprintf("step %d (%s %s): golden position %s, got %s", n, got.Op, got.ID, w, g))
	}
	if want.Error != got.Error {
		diffs = append(diffs, fmt.Sprintf("step %d (%s %s): golden error %q, got %q", n, got.Op, got.ID, want.Error, got.Error))
	}
	return diffs
}

func formatPosition(p *int64) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprint(*p)
}

// finalOrder lists "id@position" per "collection group".
func finalOrder(s *Snapshot) map[string][]string {
	order := make(map[string][]string)
	for name, rows := range s.State {
		for _, row := range rows {
			key := name + " " + row.Group
			order[key] = append(order[key], fmt.Sprintf("%s@%d", row.ID, row.Position))
		}
	}
	return order
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result, opts...)
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario. Extra goldie options override the fixture dir.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	opts = append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)
	g := goldie.New(t, opts...)
	g.Assert(t, scenarioName, data)

	return nil
}
