package position

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ordinal/internal/ir"
)

// memBackend is an in-memory Backend over a single table of rows.
type memBackend struct {
	rows map[string]*memRow

	reads  int // MaxPosition + Count calls
	shifts int // Shift calls
	failOn string
}

type memRow struct {
	id         string
	collection string
	group      ir.GroupKey
	pos        int64
}

var errInjected = errors.New("injected backend failure")

func newMemBackend() *memBackend {
	return &memBackend{rows: make(map[string]*memRow)}
}

func (m *memBackend) members(scope Scope) []*memRow {
	var out []*memRow
	for _, r := range m.rows {
		if r.collection == scope.Collection && scope.Includes(r.id, r.group) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memBackend) MaxPosition(_ context.Context, scope Scope) (int64, bool, error) {
	m.reads++
	if m.failOn == "max" {
		return 0, false, errInjected
	}
	var last int64
	found := false
	for _, r := range m.members(scope) {
		if !found || r.pos > last {
			last = r.pos
			found = true
		}
	}
	return last, found, nil
}

func (m *memBackend) Count(_ context.Context, scope Scope) (int64, error) {
	m.reads++
	if m.failOn == "count" {
		return 0, errInjected
	}
	return int64(len(m.members(scope))), nil
}

func (m *memBackend) Shift(_ context.Context, scope Scope, rng Range, delta int64) (int64, error) {
	m.shifts++
	if m.failOn == "shift" {
		return 0, errInjected
	}
	var n int64
	for _, r := range m.members(scope) {
		if rng.Contains(r.pos) {
			r.pos += delta
			n++
		}
	}
	return n, nil
}

// lifecycle drives a Coordinator the way a persistence layer would:
// BeforeSave, write, After hook.
type lifecycle struct {
	t      *testing.T
	ctx    context.Context
	b      *memBackend
	coord  *Coordinator
	nextID int
}

func newLifecycle(t *testing.T, policies ...Policy) *lifecycle {
	t.Helper()
	return &lifecycle{
		t:     t,
		ctx:   context.Background(),
		b:     newMemBackend(),
		coord: NewCoordinator(NewRegistry(policies...)),
	}
}

func (l *lifecycle) stored(id string) ir.Record {
	l.t.Helper()
	r, ok := l.b.rows[id]
	require.True(l.t, ok, "record %s not stored", id)
	return ir.Record{
		ID:         r.id,
		Collection: r.collection,
		Position:   ir.Int64(r.pos),
		Group:      append(ir.GroupKey(nil), r.group...),
		Exists:     true,
	}
}

func (l *lifecycle) create(collection string, group ir.GroupKey, pos *int64) string {
	l.t.Helper()
	id, err := l.tryCreate(collection, group, pos)
	require.NoError(l.t, err)
	return id
}

func (l *lifecycle) tryCreate(collection string, group ir.GroupKey, pos *int64) (string, error) {
	l.nextID++
	rec := ir.Record{
		ID:         fmt.Sprintf("r%02d", l.nextID),
		Collection: collection,
		Position:   pos,
		Group:      group,
	}
	if err := l.coord.BeforeSave(l.ctx, l.b, &rec, nil); err != nil {
		return "", err
	}
	l.b.rows[rec.ID] = &memRow{id: rec.ID, collection: collection, group: rec.Group, pos: *rec.Position}
	rec.Exists = true
	return rec.ID, l.coord.AfterCreate(l.ctx, l.b, rec)
}

func (l *lifecycle) move(id string, pos int64) {
	l.t.Helper()
	orig := l.stored(id)
	rec := orig.Clone()
	rec.SetPosition(pos)
	l.save(&rec, orig)
}

func (l *lifecycle) regroup(id string, group ir.GroupKey, pos *int64) {
	l.t.Helper()
	orig := l.stored(id)
	rec := orig.Clone()
	rec.Group = group
	rec.Position = pos
	l.save(&rec, orig)
}

func (l *lifecycle) save(rec *ir.Record, orig ir.Record) {
	l.t.Helper()
	require.NoError(l.t, l.coord.BeforeSave(l.ctx, l.b, rec, &orig))
	row := l.b.rows[rec.ID]
	row.group = rec.Group
	row.pos = *rec.Position
	require.NoError(l.t, l.coord.AfterUpdate(l.ctx, l.b, *rec, orig))
}

func (l *lifecycle) delete(id string) {
	l.t.Helper()
	rec := l.stored(id)
	delete(l.b.rows, id)
	require.NoError(l.t, l.coord.AfterDelete(l.ctx, l.b, rec))
}

// order returns the IDs of a group sorted by position, then ID.
func (l *lifecycle) order(collection string, group ir.GroupKey) []string {
	rows := l.b.members(Scope{Collection: collection, Group: group})
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].pos != rows[j].pos {
			return rows[i].pos < rows[j].pos
		}
		return rows[i].id < rows[j].id
	})
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.id
	}
	return ids
}

// positions returns id → position for a group.
func (l *lifecycle) positions(collection string, group ir.GroupKey) map[string]int64 {
	out := make(map[string]int64)
	for _, r := range l.b.members(Scope{Collection: collection, Group: group}) {
		out[r.id] = r.pos
	}
	return out
}

// requireDense asserts the group holds exactly start..start+n-1.
func (l *lifecycle) requireDense(collection string, group ir.GroupKey, start int64) {
	l.t.Helper()
	rows := l.b.members(Scope{Collection: collection, Group: group})
	got := make([]int64, len(rows))
	for i, r := range rows {
		got[i] = r.pos
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := make([]int64, len(rows))
	for i := range want {
		want[i] = start + int64(i)
	}
	require.Equal(l.t, want, got, "group %s of %s is not dense", group, collection)
}
