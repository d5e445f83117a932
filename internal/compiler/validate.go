package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/ordinal/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedIRType = "E200" // unsupported IR type for validation

	// CollectionSpec errors (E201-E209)
	ErrEmptyName          = "E201" // collection name or table is empty
	ErrInvalidIdentifier  = "E202" // name is not a SQL identifier
	ErrDuplicateColumn    = "E203" // group column declared twice
	ErrInvalidColumnType  = "E204" // group column type is not string or int
	ErrInvalidNextMode    = "E205" // next_position is not append or prepend
	ErrReservedColumnName = "E206" // group column collides with a fixed column
)

// reservedColumns are the fixed columns of every collection table.
var reservedColumns = map[string]bool{
	"id":          true,
	"position":    true,
	"attrs":       true,
	"created_seq": true,
}

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.CollectionSpec:
		return validateCollectionSpec(spec)
	case ir.CollectionSpec:
		return validateCollectionSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateCollectionSpec validates a collection definition.
func validateCollectionSpec(spec *ir.CollectionSpec) []ValidationError {
	var errs []ValidationError

	// E201/E202: name and table must be usable as SQL identifiers
	for _, f := range []struct{ field, value string }{
		{"name", spec.Name},
		{"table", spec.Table},
	} {
		switch {
		case strings.TrimSpace(f.value) == "":
			errs = append(errs, ValidationError{
				Field:   f.field,
				Message: f.field + " is required and must be non-empty",
				Code:    ErrEmptyName,
			})
		case !identifierRegex.MatchString(f.value):
			errs = append(errs, ValidationError{
				Field:   f.field,
				Message: fmt.Sprintf("%q is not a valid identifier", f.value),
				Code:    ErrInvalidIdentifier,
			})
		}
	}

	// E205: next_position mode
	switch spec.Mode() {
	case ir.NextAppend, ir.NextPrepend:
	default:
		errs = append(errs, ValidationError{
			Field:   "next_position",
			Message: fmt.Sprintf("invalid next_position %q, must be \"append\" or \"prepend\"", spec.NextPosition),
			Code:    ErrInvalidNextMode,
		})
	}

	// Track names for duplicate detection (SQLite column names are case-insensitive)
	seen := make(map[string]bool)

	for i, col := range spec.GroupBy {
		field := fmt.Sprintf("group_by[%d]", i)
		name := strings.ToLower(col.Name)

		if !identifierRegex.MatchString(col.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("%q is not a valid identifier", col.Name),
				Code:    ErrInvalidIdentifier,
			})
		}

		// E206: reserved column name
		if reservedColumns[name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("group column %q collides with a fixed column", col.Name),
				Code:    ErrReservedColumnName,
			})
		}

		// E203: duplicate group column
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate group column: %q", col.Name),
				Code:    ErrDuplicateColumn,
			})
		}
		seen[name] = true

		// E204: group values must be exact scalars
		if col.Type != ir.ColumnString && col.Type != ir.ColumnInt {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("invalid type %q for group column %q, must be string or int", col.Type, col.Name),
				Code:    ErrInvalidColumnType,
			})
		}
	}

	return errs
}
