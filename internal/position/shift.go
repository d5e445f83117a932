package position

import (
	"context"
	"fmt"
)

// ShiftToEnd adds one to every member of scope whose position lies in
// [lower, upper). A nil upper is unbounded. Used to open a slot at lower.
func ShiftToEnd(ctx context.Context, b Backend, scope Scope, lower int64, upper *int64) (int64, error) {
	rng := Range{From: &lower, FromInclusive: true, To: upper}
	n, err := b.Shift(ctx, scope, rng, +1)
	if err != nil {
		return 0, fmt.Errorf("shift %s %s toward end: %w", scope.Collection, rng, err)
	}
	return n, nil
}

// ShiftToStart subtracts one from every member of scope whose position lies
// in (lower, upper]. A nil upper is unbounded. Used to close the slot at lower.
func ShiftToStart(ctx context.Context, b Backend, scope Scope, lower int64, upper *int64) (int64, error) {
	rng := Range{From: &lower, To: upper, ToInclusive: true}
	n, err := b.Shift(ctx, scope, rng, -1)
	if err != nil {
		return 0, fmt.Errorf("shift %s %s toward start: %w", scope.Collection, rng, err)
	}
	return n, nil
}
