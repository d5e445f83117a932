package position

// Normalize maps a raw position to an absolute target.
//
// size is the number of slots the target group will have once the record
// is in it: the count of the group's other members plus one. A raw value
// below start is relative to the end, with start-1 naming the last slot:
//
//	absolute = raw + size
//
// For start 0 that makes -1 the last slot and -2 the one before it. Raw
// values at or above start are already absolute.
//
// With clamp set the result is confined to [start, start+size-1].
func Normalize(raw, start, size int64, clamp bool) int64 {
	abs := raw
	if raw < start {
		abs = raw + size
	}
	if clamp {
		last := start + size - 1
		if abs > last {
			abs = last
		}
		if abs < start {
			abs = start
		}
	}
	return abs
}

// IsTerminal reports whether pos is the append sentinel for start.
//
// The sentinel is also a legal relative address (start-1 is "last"), so a
// caller who explicitly asks for start-1 gets terminal handling too. Both
// land on the final slot; they differ only in that a terminal insert skips
// the insertion shift.
func IsTerminal(pos, start int64) bool {
	return pos == start-1
}
