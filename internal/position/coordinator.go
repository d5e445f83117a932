package position

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ordinal/internal/ir"
)

// Coordinator implements Listener: it turns lifecycle events into resolve,
// normalize and shift calls so that every group stays dense.
type Coordinator struct {
	registry *Registry
	controls *Controls
	logger   *slog.Logger
}

var _ Listener = (*Coordinator)(nil)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger used for shift diagnostics (Debug level).
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithDefaultControls sets the controls consulted when the hook context
// carries none.
func WithDefaultControls(controls *Controls) CoordinatorOption {
	return func(c *Coordinator) {
		c.controls = controls
	}
}

// NewCoordinator returns a Coordinator resolving policies from registry.
func NewCoordinator(registry *Registry, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		registry: registry,
		controls: NewControls(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Controls returns the controls in effect for ctx.
func (c *Coordinator) Controls(ctx context.Context) *Controls {
	if ctrl := ControlsFrom(ctx); ctrl != nil {
		return ctrl
	}
	return c.controls
}

// BeforeSave assigns and normalizes rec's position.
//
// Steps, in order:
//  1. Canonicalize rec.Group through the policy.
//  2. Resolve a position when none is set (force first, then policy).
//  3. Mark rec.Terminal when the position is the sentinel start-1.
//  4. Normalize: positions below start become relative-from-end targets
//     in the record's target group.
//
// The group is read only when resolving or normalizing needs it, so a
// save with an absolute position under lock touches no other record.
func (c *Coordinator) BeforeSave(ctx context.Context, b Backend, rec *ir.Record, orig *ir.Record) error {
	p, err := c.registry.Lookup(rec.Collection)
	if err != nil {
		return err
	}
	ctrl := c.Controls(ctx)
	start := p.StartPosition()

	rec.Group = p.GroupKey(*rec)
	target := Scope{Collection: p.Collection(), Group: rec.Group, Exclude: rec.ID}

	if rec.Position == nil {
		pos, err := Resolve(ctx, b, p, ctrl, target)
		if err != nil {
			return fmt.Errorf("resolve position: %w", err)
		}
		rec.SetPosition(pos)
	}

	raw := *rec.Position
	rec.Terminal = IsTerminal(raw, start)

	clamp := p.Clamp() && !ctrl.Locked(p.Collection())
	if raw >= start && !clamp {
		return nil
	}

	others, err := b.Count(ctx, target)
	if err != nil {
		return fmt.Errorf("count group: %w", err)
	}
	abs := Normalize(raw, start, others+1, clamp)
	rec.SetPosition(abs)

	if abs != raw {
		c.logger.Debug("position normalized",
			"collection", p.Collection(),
			"record", rec.ID,
			"group", rec.Group.String(),
			"raw", raw,
			"absolute", abs,
			"terminal", rec.Terminal,
			"joining", orig == nil || !p.GroupKey(*orig).Equal(rec.Group))
	}
	return nil
}

// AfterCreate opens the slot the new record occupies.
func (c *Coordinator) AfterCreate(ctx context.Context, b Backend, rec ir.Record) error {
	p, err := c.registry.Lookup(rec.Collection)
	if err != nil {
		return err
	}
	if c.Controls(ctx).Locked(p.Collection()) {
		return nil
	}
	return c.addToGroup(ctx, b, p, rec)
}

// AfterUpdate renumbers siblings after a move or a group change.
//
// A group change closes the gap in the original group and then opens a
// slot in the new one, exactly as a delete followed by a create would.
// A move within one group shifts only the members between the old and new
// slots.
func (c *Coordinator) AfterUpdate(ctx context.Context, b Backend, rec ir.Record, orig ir.Record) error {
	p, err := c.registry.Lookup(rec.Collection)
	if err != nil {
		return err
	}
	if c.Controls(ctx).Locked(p.Collection()) {
		return nil
	}

	oldGroup := p.GroupKey(orig)
	newGroup := p.GroupKey(rec)

	if !oldGroup.Equal(newGroup) {
		if origPos, ok := orig.PositionValue(); ok {
			scope := Scope{Collection: p.Collection(), Group: oldGroup, Exclude: rec.ID}
			if err := c.shiftToStart(ctx, b, scope, origPos, nil); err != nil {
				return err
			}
		}
		return c.addToGroup(ctx, b, p, rec)
	}

	cur, curOK := rec.PositionValue()
	prev, prevOK := orig.PositionValue()
	if !curOK || !prevOK || cur == prev {
		return nil
	}

	scope := Scope{Collection: p.Collection(), Group: newGroup, Exclude: rec.ID}
	if cur < prev {
		return c.shiftToEnd(ctx, b, scope, cur, &prev)
	}
	return c.shiftToStart(ctx, b, scope, prev, &cur)
}

// AfterDelete closes the gap the deleted record leaves in its group.
// rec must carry the stored (original) group and position.
func (c *Coordinator) AfterDelete(ctx context.Context, b Backend, rec ir.Record) error {
	p, err := c.registry.Lookup(rec.Collection)
	if err != nil {
		return err
	}
	if c.Controls(ctx).Locked(p.Collection()) {
		return nil
	}
	pos, ok := rec.PositionValue()
	if !ok {
		return nil
	}
	scope := Scope{Collection: p.Collection(), Group: p.GroupKey(rec), Exclude: rec.ID}
	return c.shiftToStart(ctx, b, scope, pos, nil)
}

// addToGroup opens a slot at rec's position unless rec is terminal.
func (c *Coordinator) addToGroup(ctx context.Context, b Backend, p Policy, rec ir.Record) error {
	if rec.Terminal {
		return nil
	}
	pos, ok := rec.PositionValue()
	if !ok {
		return nil
	}
	scope := Scope{Collection: p.Collection(), Group: p.GroupKey(rec), Exclude: rec.ID}
	return c.shiftToEnd(ctx, b, scope, pos, nil)
}

func (c *Coordinator) shiftToEnd(ctx context.Context, b Backend, scope Scope, lower int64, upper *int64) error {
	n, err := ShiftToEnd(ctx, b, scope, lower, upper)
	if err != nil {
		return err
	}
	c.logShift(scope, Range{From: &lower, FromInclusive: true, To: upper}, +1, n)
	return nil
}

func (c *Coordinator) shiftToStart(ctx context.Context, b Backend, scope Scope, lower int64, upper *int64) error {
	n, err := ShiftToStart(ctx, b, scope, lower, upper)
	if err != nil {
		return err
	}
	c.logShift(scope, Range{From: &lower, To: upper, ToInclusive: true}, -1, n)
	return nil
}

func (c *Coordinator) logShift(scope Scope, rng Range, delta, affected int64) {
	c.logger.Debug("positions shifted",
		"collection", scope.Collection,
		"group", scope.Group.String(),
		"range", rng.String(),
		"delta", delta,
		"excluded", scope.Exclude,
		"affected", affected)
}
