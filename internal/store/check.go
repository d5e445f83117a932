package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/ordinal/internal/ir"
)

// Violation reports a group whose positions are not the dense sequence
// start, start+1, ..., start+n-1.
type Violation struct {
	Collection string
	Group      ir.GroupKey
	Start      int64
	Positions  []int64
}

func (v Violation) String() string {
	parts := make([]string, len(v.Positions))
	for i, p := range v.Positions {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s %s: positions [%s], want %d..%d",
		v.Collection, v.Group, strings.Join(parts, " "),
		v.Start, v.Start+int64(len(v.Positions))-1)
}

// Check scans every group of the collection and reports those that are not
// densely packed from the start position.
func (c *Collection) Check(ctx context.Context) (_ []Violation, err error) {
	ctx, span := c.spanStart(ctx, "Check")
	defer func() {
		recordError(span, err)
		span.End()
	}()

	recs, err := c.selectRecords(ctx, nil, c.orderTerms(OrderAscending, true))
	if err != nil {
		return nil, err
	}

	var violations []Violation
	flush := func(group ir.GroupKey, positions []int64) {
		for i, p := range positions {
			if p != c.spec.StartPosition+int64(i) {
				violations = append(violations, Violation{
					Collection: c.spec.Name,
					Group:      group,
					Start:      c.spec.StartPosition,
					Positions:  positions,
				})
				return
			}
		}
	}

	var (
		group     ir.GroupKey
		positions []int64
	)
	for i, rec := range recs {
		if i > 0 && !rec.Group.Equal(group) {
			flush(group, positions)
			positions = nil
		}
		group = rec.Group
		positions = append(positions, *rec.Position)
	}
	if len(positions) > 0 {
		flush(group, positions)
	}

	span.SetAttributes(AttrResultCount.Int(len(violations)))
	if len(violations) > 0 {
		c.s.logger.Warn("density violations found",
			"collection", c.spec.Name,
			"groups", len(violations))
	}
	return violations, nil
}

// Check runs Collection.Check on every registered collection.
func (s *Store) Check(ctx context.Context) (_ []Violation, err error) {
	ctx, span := s.startSpan(ctx, "store.CheckAll")
	defer func() {
		recordError(span, err)
		span.End()
	}()

	var all []Violation
	for _, spec := range s.Collections() {
		c := &Collection{s: s, spec: spec}
		v, err := c.Check(ctx)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", spec.Name, err)
		}
		all = append(all, v...)
	}
	return all, nil
}
