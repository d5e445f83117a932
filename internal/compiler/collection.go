package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ordinal/internal/ir"
)

// CompileCollection parses a CUE value into a CollectionSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the collection struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`collection: items: { group_by: { list_id: int } }`)
//	spec, err := CompileCollection(v.LookupPath(cue.ParsePath("collection.items")))
//
// Group columns are declared with CUE types and keep their declaration
// order, which is the order of the group key.
func CompileCollection(v cue.Value) (*ir.CollectionSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.CollectionSpec{}

	// Collection name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if spec.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if spec.Table == "" {
		spec.Table = spec.Name
	}

	startVal := v.LookupPath(cue.ParsePath("start_position"))
	if startVal.Exists() {
		start, err := startVal.Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   "start_position",
				Message: "must be a concrete integer",
				Pos:     startVal.Pos(),
			}
		}
		spec.StartPosition = start
	}

	mode, err := optionalString(v, "next_position")
	if err != nil {
		return nil, err
	}
	spec.NextPosition = ir.NextPositionMode(mode)

	if spec.DefaultOrder, err = optionalBool(v, "default_order"); err != nil {
		return nil, err
	}
	if spec.Clamp, err = optionalBool(v, "clamp"); err != nil {
		return nil, err
	}

	spec.GroupBy, err = parseGroupBy(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseGroupBy extracts group columns in declaration order.
func parseGroupBy(v cue.Value) ([]ir.GroupColumn, error) {
	groupVal := v.LookupPath(cue.ParsePath("group_by"))
	if !groupVal.Exists() {
		return nil, nil // ungrouped collection
	}

	iter, err := groupVal.Fields()
	if err != nil {
		return nil, &CompileError{
			Field:   "group_by",
			Message: "must be a struct of column: type",
			Pos:     groupVal.Pos(),
		}
	}

	var cols []ir.GroupColumn
	for iter.Next() {
		typ, err := extractTypeName(iter.Value())
		if err != nil {
			return nil, err
		}
		cols = append(cols, ir.GroupColumn{Name: iter.Label(), Type: typ})
	}
	return cols, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: "must be a concrete string",
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{
			Field:   field,
			Message: "must be a concrete bool",
			Pos:     fv.Pos(),
		}
	}
	return b, nil
}

// extractTypeName converts a CUE type to a group column type string.
// Floats are forbidden: group equality must be exact.
// Other non-scalar kinds are returned by name and rejected by Validate.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.ColumnString, nil
	case cue.IntKind:
		return ir.ColumnInt, nil
	case cue.BoolKind:
		return "bool", nil
	case cue.ListKind:
		return "array", nil
	case cue.StructKind:
		return "object", nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
