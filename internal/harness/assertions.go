package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}

	return buf.String()
}

// AssertionContext provides the store access assertions need.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPositions:
			err = assertPositions(result.Trace, a, actx)
		case AssertDense:
			err = assertDense(result.Trace, a, actx)
		case AssertCount:
			err = assertCount(result.Trace, a, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

// assertPositions checks that the group lists exactly the given IDs in
// ascending position order.
func assertPositions(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	coll, err := actx.Store.Collection(a.Collection)
	if err != nil {
		return err
	}
	group, err := groupFromMap(a.Group)
	if err != nil {
		return fmt.Errorf("group: %w", err)
	}
	recs, err := coll.List(actx.Ctx, group, store.OrderAscending)
	if err != nil {
		return err
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	if !equalStrings(ids, a.Order) {
		return &AssertionError{
			Type:     AssertPositions,
			Expected: fmt.Sprintf("%s %s in order %v", a.Collection, describeGroup(group), a.Order),
			Actual:   formatListing(recs),
			Trace:    trace,
		}
	}
	return nil
}

// assertDense checks that every group is densely packed from its start
// position, for one collection or for the whole store.
func assertDense(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	var violations []store.Violation
	if a.Collection == "" {
		v, err := actx.Store.Check(actx.Ctx)
		if err != nil {
			return err
		}
		violations = v
	} else {
		coll, err := actx.Store.Collection(a.Collection)
		if err != nil {
			return err
		}
		v, err := coll.Check(actx.Ctx)
		if err != nil {
			return err
		}
		violations = v
	}

	if len(violations) == 0 {
		return nil
	}
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return &AssertionError{
		Type:     AssertDense,
		Expected: "dense positions in every group",
		Actual:   strings.Join(parts, "; "),
		Trace:    trace,
	}
}

// assertCount checks the number of records in a group.
func assertCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	coll, err := actx.Store.Collection(a.Collection)
	if err != nil {
		return err
	}
	group, err := groupFromMap(a.Group)
	if err != nil {
		return fmt.Errorf("group: %w", err)
	}
	n, err := coll.Count(actx.Ctx, group)
	if err != nil {
		return err
	}
	if n != int64(a.Count) {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d records in %s %s", a.Count, a.Collection, describeGroup(group)),
			Actual:   fmt.Sprintf("%d records", n),
			Trace:    trace,
		}
	}
	return nil
}

func describeGroup(group ir.GroupKey) string {
	if group == nil {
		return "(all groups)"
	}
	return group.String()
}

func formatListing(recs []ir.Record) string {
	if len(recs) == 0 {
		return "no records"
	}
	parts := make([]string, len(recs))
	for i, rec := range recs {
		pos, _ := rec.PositionValue()
		parts[i] = fmt.Sprintf("%s@%d", rec.ID, pos)
	}
	return strings.Join(parts, " ")
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
