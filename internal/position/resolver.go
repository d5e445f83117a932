package position

import "context"

// Resolve returns the position for a record saved without one.
//
// A force registered for the policy's collection wins unconditionally;
// otherwise the policy's next-position strategy decides. scope must be the
// record's target group with the record itself excluded.
func Resolve(ctx context.Context, b Backend, p Policy, controls *Controls, scope Scope) (int64, error) {
	if pos, ok := controls.Forced(p.Collection()); ok {
		return pos, nil
	}
	return p.NextPosition(ctx, b, scope)
}
