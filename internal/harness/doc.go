// Package harness provides scenario testing for positioned collections.
//
// The harness compiles collection specs, executes test scenarios against a
// fresh in-memory store and checks the resulting order as executable
// contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - path/to/collections.cue
//	collections:
//	  - name: cards
//	    table: cards
//	    group_by: [{name: list_id, type: int}]
//	    start_position: 1
//	steps:
//	  - op: create
//	    collection: cards
//	    id: a
//	    group: { list_id: 1 }
//	    expect:
//	      position: 1
//	  - op: move
//	    collection: cards
//	    id: a
//	    position: 0
//	assertions:
//	  - type: positions
//	    collection: cards
//	    group: { list_id: 1 }
//	    order: [b, a]
//	  - type: dense
//
// # Step Operations
//
// create, move, regroup, delete and swap act on records. lock, unlock,
// force and unforce change the run's position controls for a collection
// and apply to every later step.
//
// # Assertion Types
//
//   - positions: IDs of a group in ascending position order
//   - dense: every group is packed from its start position without gaps
//   - count: number of records in a group
//
// # Golden Files
//
// RunWithGolden snapshots the step trace and the final state of every
// collection as canonical JSON and compares it with testdata/golden.
// Record IDs come from a sequential generator, so snapshots are stable
// across runs.
package harness
