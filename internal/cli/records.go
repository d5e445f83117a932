package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/ir"
	"github.com/roach88/ordinal/internal/store"
)

// RecordView is the output form of one record.
type RecordView struct {
	ID         string      `json:"id"`
	Collection string      `json:"collection"`
	Group      ir.IRObject `json:"group,omitempty"`
	Position   int64       `json:"position"`
	Attrs      ir.IRObject `json:"attrs,omitempty"`
}

func newRecordView(rec ir.Record) RecordView {
	pos, _ := rec.PositionValue()
	view := RecordView{
		ID:         rec.ID,
		Collection: rec.Collection,
		Position:   pos,
	}
	if len(rec.Group) > 0 {
		view.Group = rec.Group.Object()
	}
	if len(rec.Attrs) > 0 {
		view.Attrs = rec.Attrs
	}
	return view
}

// String renders the record as one line of text output.
func (v RecordView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d  %s", v.Position, v.ID)
	if len(v.Group) > 0 {
		fmt.Fprintf(&b, "  [%s]", groupText(v.Group))
	}
	if len(v.Attrs) > 0 {
		data, err := ir.MarshalCanonical(v.Attrs)
		if err == nil {
			fmt.Fprintf(&b, "  %s", data)
		}
	}
	return b.String()
}

func groupText(obj ir.IRObject) string {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + ir.Format(obj[name])
	}
	return strings.Join(parts, ",")
}

// session is an open store plus the logger for one record command.
type session struct {
	store  *store.Store
	logger *slog.Logger
}

// openSession opens the database and registers the collections of
// --specs, if set. Registering an unchanged definition again is a no-op.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	logger := opts.logger(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = DefaultDatabase
	}
	logger.Debug("opening database", "path", dbPath)
	st, err := store.Open(dbPath, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	if opts.SpecsDir != "" {
		loadResult, loadErrs := LoadSpecs(opts.SpecsDir, LoadModeFailFast)
		if len(loadErrs) > 0 {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to load specs", loadErrs[0])
		}
		for _, spec := range loadResult.Collections {
			if _, err := st.Register(ctx, spec); err != nil {
				st.Close()
				return nil, WrapExitError(ExitCommandError, "failed to register collection", err)
			}
		}
		logger.Debug("specs registered", "dir", opts.SpecsDir, "collections", len(loadResult.Collections))
	}

	return &session{store: st, logger: logger}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// collection returns the named collection or an E120 error.
func (s *session) collection(f *OutputFormatter, name string) (*store.Collection, error) {
	coll, err := s.store.Collection(name)
	if err != nil {
		return nil, outputRecordError(f, ErrCodeUnknownCollection, err)
	}
	return coll, nil
}

// parseGroup converts k=v flags into a group key, interpreting each value
// by the declared column type. "null" is the NULL group value.
func parseGroup(spec ir.CollectionSpec, pairs []string) (ir.GroupKey, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	types := make(map[string]string, len(spec.GroupBy))
	for _, col := range spec.GroupBy {
		types[col.Name] = col.Type
	}

	var key ir.GroupKey
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("group %q: expected name=value", pair)
		}
		typ, known := types[name]
		if !known {
			return nil, fmt.Errorf("group %q: %s has no group column %q", pair, spec.Name, name)
		}

		var value ir.IRValue
		switch {
		case raw == "null":
			value = ir.IRNull{}
		case typ == ir.ColumnInt:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("group %q: %s is an int column", pair, name)
			}
			value = ir.IRInt(n)
		default:
			value = ir.IRString(raw)
		}
		key = append(key, ir.GroupField{Name: name, Value: value})
	}
	return key, nil
}

// parseAttrs converts k=v flags into attributes using scalar inference.
func parseAttrs(pairs []string) (ir.IRObject, error) {
	attrs := ir.IRObject{}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("attr %q: expected name=value", pair)
		}
		attrs[name] = ir.ParseScalar(raw)
	}
	return attrs, nil
}

// parsePosition parses a raw position argument. Negative values count
// back from the end of the group.
func parsePosition(arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("position %q: must be an integer", arg)
	}
	return n, nil
}

// recordErrorCode classifies a store error.
func recordErrorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeRecordNotFound
	case errors.Is(err, store.ErrUnknownCollection):
		return ErrCodeUnknownCollection
	case errors.Is(err, store.ErrInvalidGroup), errors.Is(err, store.ErrCrossGroupSwap), errors.Is(err, store.ErrRecordExists):
		return ErrCodeInvalidArgument
	default:
		return ErrCodeOperationFailed
	}
}

// outputRecordError reports err and returns a command error.
func outputRecordError(f *OutputFormatter, code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}

// outputRecords writes records in the configured format.
func outputRecords(f *OutputFormatter, recs []ir.Record) error {
	views := make([]RecordView, len(recs))
	for i, rec := range recs {
		views[i] = newRecordView(rec)
	}
	if f.Format == "json" {
		return f.Success(views)
	}
	writeRecordLines(f.Writer, views)
	return nil
}

func writeRecordLines(w io.Writer, views []RecordView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "(no records)")
		return
	}
	for _, v := range views {
		fmt.Fprintln(w, v.String())
	}
}
