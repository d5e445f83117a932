package ir

// Record is one positioned record of a collection.
//
// Position is nil when the caller leaves placement to the collection's
// next-position policy. After a successful save it always holds the stored value.
type Record struct {
	ID         string   `json:"id"`
	Collection string   `json:"collection"`
	Position   *int64   `json:"position,omitempty"`
	Group      GroupKey `json:"group,omitempty"`
	Attrs      IRObject `json:"attrs,omitempty"`

	// Exists is true once the record has been persisted.
	Exists bool `json:"-"`

	// Terminal is set during pre-save when the position was resolved to the
	// append sentinel (start-1). It is never persisted.
	Terminal bool `json:"-"`
}

// PositionValue returns the position and whether one is set.
func (r *Record) PositionValue() (int64, bool) {
	if r.Position == nil {
		return 0, false
	}
	return *r.Position, true
}

// SetPosition assigns the position.
func (r *Record) SetPosition(p int64) {
	r.Position = &p
}

// Clone returns a copy that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	if r.Position != nil {
		p := *r.Position
		out.Position = &p
	}
	if r.Group != nil {
		out.Group = append(GroupKey(nil), r.Group...)
	}
	if r.Attrs != nil {
		out.Attrs = make(IRObject, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// Int64 returns a pointer to p, for building records with explicit positions.
func Int64(p int64) *int64 {
	return &p
}
