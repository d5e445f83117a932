package harness

import (
	"fmt"
	"strings"
)

// TraceEvent records one executed scenario step.
type TraceEvent struct {
	Seq        int64          `json:"seq"`
	Op         string         `json:"op"`
	Collection string         `json:"collection,omitempty"`
	ID         string         `json:"id,omitempty"`
	Other      string         `json:"other,omitempty"`
	Group      map[string]any `json:"group,omitempty"`
	Position   *int64         `json:"position,omitempty"` // stored position after the step
	Error      string         `json:"error,omitempty"`
}

// String renders the event as one trace line, e.g.
// "[3] move cards b -> 2" or "[4] swap cards a b (error: ...)".
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s %s %s", e.Seq, e.Op, e.Collection, e.ID)
	if e.Other != "" {
		fmt.Fprintf(&b, " %s", e.Other)
	}
	if e.Position != nil {
		fmt.Fprintf(&b, " -> %d", *e.Position)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " (error: %s)", e.Error)
	}
	return b.String()
}

// StateRow is one record of the final state listing.
type StateRow struct {
	ID       string `json:"id"`
	Group    string `json:"group"`
	Position int64  `json:"position"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	// Used for golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final records of each collection in group, position order.
	State map[string][]StateRow `json:"state,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string][]StateRow),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
