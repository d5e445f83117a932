package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/ordinal/internal/compiler"
	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/position"
	"github.com/roach88/ordinal/internal/store"
	"github.com/roach88/ordinal/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh store with deterministic record IDs.
type Harness struct {
	store    *store.Store
	controls *position.Controls
	clock    *testutil.DeterministicClock
	logger   *slog.Logger
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger for step execution. The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile spec files and register all collections
// 3. Execute steps in order, checking expect clauses
// 4. Capture the final state and evaluate assertions
//
// A step that fails without an expect.error clause fails the result but
// does not stop the run; later steps still execute.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		controls: position.NewControls(),
		clock:    testutil.NewDeterministicClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(":memory:",
		store.WithLogger(h.logger),
		store.WithControls(h.controls),
		store.WithIDGenerator(testutil.NewSequentialIDGenerator(scenario.IDPrefix)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	ctx := context.Background()

	if err := h.register(ctx, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	if err := h.captureState(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to capture state: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", result.Pass)
	return result, nil
}

// register compiles the scenario's spec files and registers every collection.
func (h *Harness) register(ctx context.Context, scenario *Scenario) error {
	var specs []ir.CollectionSpec
	for _, path := range scenario.Specs {
		compiled, err := compiler.CompileFile(path)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", path, err)
		}
		specs = append(specs, compiled...)
	}
	specs = append(specs, scenario.Collections...)

	for _, spec := range specs {
		if _, err := h.store.Register(ctx, spec); err != nil {
			return fmt.Errorf("failed to register collection: %w", err)
		}
	}
	return nil
}

// executeStep runs one step, records it in the trace and checks its
// expect clause.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	event := TraceEvent{
		Seq:        h.clock.Next(),
		Op:         step.Op,
		Collection: step.Collection,
		ID:         step.ID,
		Other:      step.Other,
		Group:      step.Group,
	}

	id, err := h.apply(ctx, step)
	if id != "" {
		event.ID = id
	}
	if err != nil {
		event.Error = err.Error()
	} else if event.ID != "" && step.Op != OpDelete {
		if pos, perr := h.positionOf(ctx, step.Collection, event.ID); perr == nil {
			event.Position = &pos
		}
	}
	result.AddTrace(event)

	h.logger.Debug("step executed",
		"index", index,
		"op", step.Op,
		"collection", step.Collection,
		"id", event.ID,
		"error", event.Error)

	for _, msg := range checkExpect(index, step, event) {
		result.AddError(msg)
	}
}

// checkExpect compares a step's outcome with its expect clause.
// Without a clause any error fails the step.
func checkExpect(index int, step Step, event TraceEvent) []string {
	var errs []string
	expect := step.Expect
	if expect == nil {
		if event.Error != "" {
			errs = append(errs, fmt.Sprintf("steps[%d] %s: unexpected error: %s", index, step.Op, event.Error))
		}
		return errs
	}

	if expect.Error != "" {
		if event.Error == "" {
			errs = append(errs, fmt.Sprintf("steps[%d] %s: expected error containing %q, got success", index, step.Op, expect.Error))
		} else if !containsFold(event.Error, expect.Error) {
			errs = append(errs, fmt.Sprintf("steps[%d] %s: expected error containing %q, got %q", index, step.Op, expect.Error, event.Error))
		}
		return errs
	}

	if event.Error != "" {
		return append(errs, fmt.Sprintf("steps[%d] %s: unexpected error: %s", index, step.Op, event.Error))
	}
	if expect.Position != nil {
		switch {
		case event.Position == nil:
			errs = append(errs, fmt.Sprintf("steps[%d] %s: expected position %d, record has none", index, step.Op, *expect.Position))
		case *event.Position != *expect.Position:
			errs = append(errs, fmt.Sprintf("steps[%d] %s: expected position %d, got %d", index, step.Op, *expect.Position, *event.Position))
		}
	}
	return errs
}

// apply performs the step's operation. It returns the ID of the record the
// step acted on, which for create may have been generated.
func (h *Harness) apply(ctx context.Context, step Step) (string, error) {
	switch step.Op {
	case OpLock:
		h.controls.LockFor(step.Collection)
		return "", nil
	case OpUnlock:
		h.controls.UnlockFor(step.Collection)
		return "", nil
	case OpForce:
		h.controls.ForceFor(step.Collection, *step.Position)
		return "", nil
	case OpUnforce:
		h.controls.ClearForce(step.Collection)
		return "", nil
	}

	coll, err := h.store.Collection(step.Collection)
	if err != nil {
		return "", err
	}
	group, err := groupFromMap(step.Group)
	if err != nil {
		return "", fmt.Errorf("group: %w", err)
	}

	switch step.Op {
	case OpCreate:
		attrs, err := attrsFromMap(step.Attrs)
		if err != nil {
			return "", fmt.Errorf("attrs: %w", err)
		}
		rec, err := coll.Create(ctx, ir.Record{
			ID:       step.ID,
			Position: step.Position,
			Group:    group,
			Attrs:    attrs,
		})
		if err != nil {
			return step.ID, err
		}
		return rec.ID, nil

	case OpMove:
		_, err := coll.Move(ctx, step.ID, *step.Position)
		return step.ID, err

	case OpRegroup:
		_, err := coll.Update(ctx, step.ID, store.Change{Position: step.Position, Group: group})
		return step.ID, err

	case OpDelete:
		return step.ID, coll.Delete(ctx, step.ID)

	case OpSwap:
		return step.ID, coll.Swap(ctx, step.ID, step.Other)

	default:
		return "", fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *Harness) positionOf(ctx context.Context, collection, id string) (int64, error) {
	coll, err := h.store.Collection(collection)
	if err != nil {
		return 0, err
	}
	rec, err := coll.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	pos, _ := rec.PositionValue()
	return pos, nil
}

// captureState lists every collection in group, position order.
func (h *Harness) captureState(ctx context.Context, result *Result) error {
	for _, spec := range h.store.Collections() {
		coll, err := h.store.Collection(spec.Name)
		if err != nil {
			return err
		}
		recs, err := coll.List(ctx, nil, store.OrderAscending)
		if err != nil {
			return err
		}
		rows := make([]StateRow, 0, len(recs))
		for _, rec := range recs {
			pos, _ := rec.PositionValue()
			rows = append(rows, StateRow{ID: rec.ID, Group: rec.Group.String(), Position: pos})
		}
		result.State[spec.Name] = rows
	}
	return nil
}

// groupFromMap converts scenario group values to a key sorted by column name.
// The store reorders keys by the collection's declared columns.
func groupFromMap(m map[string]interface{}) (ir.GroupKey, error) {
	if len(m) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	key := make(ir.GroupKey, 0, len(names))
	for _, name := range names {
		v, err := ir.FromAny(m[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		key = append(key, ir.GroupField{Name: name, Value: v})
	}
	return key, nil
}

func attrsFromMap(m map[string]interface{}) (ir.IRObject, error) {
	if len(m) == 0 {
		return nil, nil
	}
	v, err := ir.FromAny(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return v.(ir.IRObject), nil
}
