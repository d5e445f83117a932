package testutil

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StepNumbers(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	var steps []int64
	for range 3 {
		steps = append(steps, clock.Next())
	}
	assert.Equal(t, []int64{1, 2, 3}, steps)
	assert.Equal(t, int64(3), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_ConcurrentStepsAreUnique(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, perWorker = 8, 250

	var (
		mu   sync.Mutex
		seen []int64
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for range perWorker {
				local = append(local, clock.Next())
			}
			mu.Lock()
			seen = append(seen, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	require.Len(t, seen, workers*perWorker)
	for i, v := range seen {
		require.Equal(t, int64(i+1), v)
	}
}

// Two runs of the same scenario each build a fresh clock and generator and
// must see the same step numbers and record IDs.
func TestDeterministicClock_ReplaysScenarioNumbering(t *testing.T) {
	type stamped struct {
		seq int64
		id  string
	}
	run := func() []stamped {
		clock := NewDeterministicClock()
		ids := NewSequentialIDGenerator("card")
		var out []stamped
		for step := range 4 {
			s := stamped{seq: clock.Next()}
			if step%2 == 0 { // only creates draw an ID
				s.id = ids.Generate()
			}
			out = append(out, s)
		}
		return out
	}

	first := run()
	assert.Equal(t, []stamped{{1, "card-0001"}, {2, ""}, {3, "card-0002"}, {4, ""}}, first)
	assert.Equal(t, first, run())
}

func TestSequentialIDGenerator_ResetMidScenario(t *testing.T) {
	ids := NewSequentialIDGenerator("rec")
	before := []string{ids.Generate(), ids.Generate()}

	ids.Reset()
	after := []string{ids.Generate(), ids.Generate()}

	assert.Equal(t, before, after)
	assert.Equal(t, "rec-0003", ids.Generate())
}
