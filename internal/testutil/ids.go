package testutil

import "fmt"

// SequentialIDGenerator generates record IDs "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario produces byte-identical listings on every run.
// It satisfies store.IDGenerator.
//
// Thread-safety: safe for concurrent use; sequencing is delegated to a
// DeterministicClock.
type SequentialIDGenerator struct {
	prefix string
	clock  *DeterministicClock
}

// NewSequentialIDGenerator creates a generator with the given prefix.
//
// If prefix is empty, "rec" is used.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "rec"
	}
	return &SequentialIDGenerator{prefix: prefix, clock: NewDeterministicClock()}
}

// Generate returns the next ID.
func (g *SequentialIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.clock.Next())
}

// Reset restarts the sequence so the next ID ends in 0001.
func (g *SequentialIDGenerator) Reset() {
	g.clock.Reset()
}
