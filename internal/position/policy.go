package position

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/ordinal/internal/ir"
)

// ErrNoPolicy is returned when a lifecycle event names a collection that
// has no registered Policy.
var ErrNoPolicy = errors.New("no position policy registered")

// Policy describes how one collection is positioned.
type Policy interface {
	// Collection is the record type name used for lookup, locks and forces.
	Collection() string

	// StartPosition is the first position of every group's sequence.
	StartPosition() int64

	// GroupKey extracts the group-defining values of rec.
	// An empty key means the collection has one implicit group.
	GroupKey(rec ir.Record) ir.GroupKey

	// NextPosition returns the position for a record saved without one.
	// scope is the record's target group with the record excluded.
	NextPosition(ctx context.Context, b Backend, scope Scope) (int64, error)

	// Clamp confines normalized targets to [start, start+size-1].
	Clamp() bool
}

// NextPositionFunc computes a next position for a scope.
type NextPositionFunc func(ctx context.Context, b Backend, scope Scope, start int64) (int64, error)

// Append places a record after the current last member, or at start when
// the group is empty.
func Append(ctx context.Context, b Backend, scope Scope, start int64) (int64, error) {
	last, ok, err := b.MaxPosition(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	if !ok {
		return start, nil
	}
	return last + 1, nil
}

// Prepend returns the terminal sentinel start-1 without reading the group.
//
// The sentinel marks the record terminal during pre-save and normalizes to
// the slot after the last member, so no insertion shift is needed.
func Prepend(_ context.Context, _ Backend, _ Scope, start int64) (int64, error) {
	return start - 1, nil
}

// SpecPolicy is the Policy for a compiled ir.CollectionSpec.
type SpecPolicy struct {
	Spec ir.CollectionSpec

	// Next overrides the strategy selected by Spec.NextPosition.
	Next NextPositionFunc
}

// NewSpecPolicy returns the policy for spec.
func NewSpecPolicy(spec ir.CollectionSpec) *SpecPolicy {
	return &SpecPolicy{Spec: spec}
}

func (p *SpecPolicy) Collection() string   { return p.Spec.Name }
func (p *SpecPolicy) StartPosition() int64 { return p.Spec.StartPosition }
func (p *SpecPolicy) Clamp() bool          { return p.Spec.Clamp }

// GroupKey orders rec.Group by the collection's group columns. Missing values
// become NULL so that an unset group column is a group of its own.
func (p *SpecPolicy) GroupKey(rec ir.Record) ir.GroupKey {
	if len(p.Spec.GroupBy) == 0 {
		return nil
	}
	key := make(ir.GroupKey, len(p.Spec.GroupBy))
	for i, col := range p.Spec.GroupBy {
		key[i] = ir.GroupField{Name: col.Name, Value: rec.Group.Get(col.Name)}
	}
	return key
}

func (p *SpecPolicy) NextPosition(ctx context.Context, b Backend, scope Scope) (int64, error) {
	next := p.Next
	if next == nil {
		switch p.Spec.Mode() {
		case ir.NextPrepend:
			next = Prepend
		default:
			next = Append
		}
	}
	return next(ctx, b, scope, p.Spec.StartPosition)
}

// Registry maps collection names to policies. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry returns a registry holding the given policies.
func NewRegistry(policies ...Policy) *Registry {
	r := &Registry{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the policy for p.Collection().
func (r *Registry) Register(p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Collection()] = p
}

// Lookup returns the policy for collection.
func (r *Registry) Lookup(collection string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, ErrNoPolicy)
	}
	return p, nil
}
