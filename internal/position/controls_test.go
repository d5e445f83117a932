package position

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControls_LockUnlock(t *testing.T) {
	c := NewControls()

	assert.False(t, c.Locked("items"))
	c.LockFor("items")
	assert.True(t, c.Locked("items"))
	assert.False(t, c.Locked("other"), "locks are per collection")
	c.UnlockFor("items")
	assert.False(t, c.Locked("items"))
}

func TestControls_NilIsUnlockedAndUnforced(t *testing.T) {
	var c *Controls
	assert.False(t, c.Locked("items"))
	_, ok := c.Forced("items")
	assert.False(t, ok)
}

func TestControls_WithLockRestoresUnlocked(t *testing.T) {
	c := NewControls()

	err := c.WithLock("items", func() error {
		assert.True(t, c.Locked("items"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, c.Locked("items"))
}

func TestControls_WithLockRestoresOnError(t *testing.T) {
	c := NewControls()
	boom := errors.New("boom")

	err := c.WithLock("items", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Locked("items"))
}

func TestControls_WithLockRestoresOnPanic(t *testing.T) {
	c := NewControls()

	assert.Panics(t, func() {
		_ = c.WithLock("items", func() error { panic("boom") })
	})
	assert.False(t, c.Locked("items"), "a panicking section must not leave the type locked")
}

func TestControls_NestedLockIsReentrant(t *testing.T) {
	c := NewControls()

	err := c.WithLock("items", func() error {
		inner := c.WithLock("items", func() error {
			assert.True(t, c.Locked("items"))
			return nil
		})
		assert.True(t, c.Locked("items"), "inner exit must not unlock the outer section")
		return inner
	})
	require.NoError(t, err)
	assert.False(t, c.Locked("items"))
}

func TestControls_WithLockKeepsExplicitLock(t *testing.T) {
	c := NewControls()
	c.LockFor("items")

	require.NoError(t, c.WithLock("items", func() error { return nil }))
	assert.True(t, c.Locked("items"), "a lock taken outside WithLock survives it")
}

func TestControls_SuppressReleaseIsIdempotent(t *testing.T) {
	c := NewControls()

	outer := c.Suppress("items")
	inner := c.Suppress("items")
	inner()
	inner()
	assert.True(t, c.Locked("items"))

	outer()
	assert.False(t, c.Locked("items"))

	c.LockFor("items")
	outer()
	assert.True(t, c.Locked("items"), "a released guard must not unlock a later lock")
}

func TestControls_Force(t *testing.T) {
	c := NewControls()

	c.ForceFor("items", 7)
	pos, ok := c.Forced("items")
	assert.True(t, ok)
	assert.Equal(t, int64(7), pos)

	_, ok = c.Forced("other")
	assert.False(t, ok)

	c.ClearForce("items")
	_, ok = c.Forced("items")
	assert.False(t, ok)
}

func TestControls_ConcurrentUse(t *testing.T) {
	c := NewControls()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.WithLock("items", func() error {
				c.ForceFor("items", 1)
				_ = c.Locked("items")
				return nil
			})
		}()
	}
	wg.Wait()

	pos, ok := c.Forced("items")
	assert.True(t, ok)
	assert.Equal(t, int64(1), pos)
}

func TestControlsContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ControlsFrom(ctx))

	c := NewControls()
	assert.Same(t, c, ControlsFrom(WithControls(ctx, c)))
}

func TestControls_CloneIsIndependent(t *testing.T) {
	c := NewControls()
	c.LockFor("items")
	c.ForceFor("tasks", 3)

	clone := c.Clone()
	assert.True(t, clone.Locked("items"))
	pos, ok := clone.Forced("tasks")
	require.True(t, ok)
	assert.Equal(t, int64(3), pos)

	release := clone.Suppress("tasks")
	assert.True(t, clone.Locked("tasks"))
	assert.False(t, c.Locked("tasks"), "locking the clone must not lock the original")
	release()

	clone.UnlockFor("items")
	clone.ClearForce("tasks")
	assert.True(t, c.Locked("items"))
	_, ok = c.Forced("tasks")
	assert.True(t, ok)

	var none *Controls
	assert.False(t, none.Clone().Locked("items"))
}
