package ir

// NextPositionMode selects how a record without an explicit position is placed.
type NextPositionMode string

const (
	// NextAppend places the record after the current last member (max+1),
	// or at the start position when the group is empty.
	NextAppend NextPositionMode = "append"

	// NextPrepend resolves to the sentinel start-1, which the pre-save hook
	// treats as "terminal" and normalizes to the end of the group without
	// an insertion shift.
	NextPrepend NextPositionMode = "prepend"
)

// Group column types. Floats are not allowed.
const (
	ColumnString = "string"
	ColumnInt    = "int"
)

// GroupColumn declares one group-defining attribute of a collection.
type GroupColumn struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"` // "string" | "int"
}

// CollectionSpec is the compiled definition of one record type.
//
// The position column is always named "position". Group columns are
// materialized as real columns so shifts can be scoped with plain
// equality predicates.
type CollectionSpec struct {
	Name          string           `json:"name" yaml:"name"`
	Table         string           `json:"table" yaml:"table"`
	GroupBy       []GroupColumn    `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	StartPosition int64            `json:"start_position" yaml:"start_position"`
	NextPosition  NextPositionMode `json:"next_position,omitempty" yaml:"next_position,omitempty"`

	// DefaultOrder makes position ascending the default read order.
	DefaultOrder bool `json:"default_order,omitempty" yaml:"default_order,omitempty"`

	// Clamp confines normalized targets to the occupied slot range.
	Clamp bool `json:"clamp,omitempty" yaml:"clamp,omitempty"`
}

// GroupColumnNames returns the names of the group columns in key order.
func (s CollectionSpec) GroupColumnNames() []string {
	names := make([]string, len(s.GroupBy))
	for i, c := range s.GroupBy {
		names[i] = c.Name
	}
	return names
}

// Mode returns the effective next-position mode, defaulting to append.
func (s CollectionSpec) Mode() NextPositionMode {
	if s.NextPosition == "" {
		return NextAppend
	}
	return s.NextPosition
}
