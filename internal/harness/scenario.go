package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ordinal/internal/ir"
)

// Scenario defines a positioning test scenario.
// Scenarios run a sequence of record operations against fresh collections
// and assert on the resulting order and density.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE files defining collections.
	// Paths are relative to the base path given when loading.
	Specs []string `yaml:"specs,omitempty"`

	// Collections defines collections inline, in addition to Specs.
	Collections []ir.CollectionSpec `yaml:"collections,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	// Supported types: positions, dense, count
	Assertions []Assertion `yaml:"assertions"`

	// IDPrefix sets the prefix for generated record IDs ("rec" if empty).
	IDPrefix string `yaml:"id_prefix,omitempty"`
}

// Step is one operation of a scenario.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Collection names the target collection.
	Collection string `yaml:"collection"`

	// ID is the record ID. Optional for create (generated when empty).
	ID string `yaml:"id,omitempty"`

	// Other is the second record of a swap.
	Other string `yaml:"other,omitempty"`

	// Position is the raw position (create, move, regroup, force).
	Position *int64 `yaml:"position,omitempty"`

	// Group holds group column values (create, regroup).
	Group map[string]interface{} `yaml:"group,omitempty"`

	// Attrs holds record attributes (create).
	Attrs map[string]interface{} `yaml:"attrs,omitempty"`

	// Expect optionally checks the step outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpCreate  = "create"
	OpMove    = "move"
	OpRegroup = "regroup"
	OpDelete  = "delete"
	OpSwap    = "swap"
	OpLock    = "lock"
	OpUnlock  = "unlock"
	OpForce   = "force"
	OpUnforce = "unforce"
)

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Position is the expected stored position of the record after the step.
	Position *int64 `yaml:"position,omitempty"`

	// Error, when set, expects the step to fail with a message containing it.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "positions": IDs of a group in position order
	// - "dense": no density violations (one collection, or all when empty)
	// - "count": number of records in a group
	Type string `yaml:"type"`

	// Collection names the collection (required for positions and count).
	Collection string `yaml:"collection,omitempty"`

	// Group selects the group. Omitted means the implicit group for
	// ungrouped collections and all groups otherwise.
	Group map[string]interface{} `yaml:"group,omitempty"`

	// Order is the expected ID order (used by positions).
	Order []string `yaml:"order,omitempty"`

	// Count is the expected number of records (used by count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPositions = "positions"
	AssertDense     = "dense"
	AssertCount     = "count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 && len(s.Collections) == 0 {
		return fmt.Errorf("specs or collections is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its op.
func validateStep(index int, st *Step) error {
	if st.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	if st.Collection == "" {
		return fmt.Errorf("steps[%d]: collection is required", index)
	}

	switch st.Op {
	case OpCreate, OpLock, OpUnlock, OpUnforce:
	case OpMove:
		if st.ID == "" || st.Position == nil {
			return fmt.Errorf("steps[%d]: id and position are required for move", index)
		}
	case OpRegroup:
		if st.ID == "" || len(st.Group) == 0 {
			return fmt.Errorf("steps[%d]: id and group are required for regroup", index)
		}
	case OpDelete:
		if st.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for delete", index)
		}
	case OpSwap:
		if st.ID == "" || st.Other == "" {
			return fmt.Errorf("steps[%d]: id and other are required for swap", index)
		}
	case OpForce:
		if st.Position == nil {
			return fmt.Errorf("steps[%d]: position is required for force", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPositions:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for positions", index)
		}
		if a.Order == nil {
			return fmt.Errorf("assertions[%d]: order is required for positions (use [] for an empty group)", index)
		}
	case AssertCount:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertDense:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
