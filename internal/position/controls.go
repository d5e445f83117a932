package position

import (
	"context"
	"sync"
)

// Controls holds per-collection shift suppression (lock) and next-position
// overrides (force). Safe for concurrent use.
//
// Locked and Forced accept a nil *Controls, which reports nothing locked
// and nothing forced.
type Controls struct {
	mu     sync.Mutex
	locked map[string]bool
	forced map[string]int64
}

// NewControls returns empty controls.
func NewControls() *Controls {
	return &Controls{
		locked: make(map[string]bool),
		forced: make(map[string]int64),
	}
}

// LockFor suppresses automatic shifting for collection typ.
func (c *Controls) LockFor(typ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked[typ] = true
}

// UnlockFor re-enables automatic shifting for collection typ.
func (c *Controls) UnlockFor(typ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locked, typ)
}

// Locked reports whether shifting is suppressed for typ.
func (c *Controls) Locked(typ string) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked[typ]
}

// Suppress locks typ and returns a release func that restores the prior
// state. Only the outermost Suppress for a type unlocks it; releasing a
// nested guard leaves the type locked. Calling release more than once is
// a no-op.
//
//	release := controls.Suppress("items")
//	defer release()
func (c *Controls) Suppress(typ string) (release func()) {
	c.mu.Lock()
	prior := c.locked[typ]
	c.locked[typ] = true
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			if !prior {
				c.UnlockFor(typ)
			}
		})
	}
}

// WithLock runs fn with typ locked and restores the prior lock state on
// every exit path, including a panic in fn.
func (c *Controls) WithLock(typ string, fn func() error) error {
	release := c.Suppress(typ)
	defer release()
	return fn()
}

// ForceFor makes every future insert of typ without an explicit position
// resolve to pos, until ClearForce.
func (c *Controls) ForceFor(typ string, pos int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forced[typ] = pos
}

// ClearForce removes the override for typ.
func (c *Controls) ClearForce(typ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.forced, typ)
}

// Forced returns the override for typ, if any.
func (c *Controls) Forced(typ string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.forced[typ]
	return pos, ok
}

// Clone returns independent controls holding the same locks and forces.
// Locking the clone leaves c untouched. A nil c clones to empty controls.
func (c *Controls) Clone() *Controls {
	out := NewControls()
	if c == nil {
		return out
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for typ := range c.locked {
		out.locked[typ] = true
	}
	for typ, pos := range c.forced {
		out.forced[typ] = pos
	}
	return out
}

type controlsKey struct{}

// WithControls returns a context carrying c. Lifecycle hooks invoked with
// that context consult c instead of the Coordinator's default controls.
func WithControls(ctx context.Context, c *Controls) context.Context {
	return context.WithValue(ctx, controlsKey{}, c)
}

// ControlsFrom returns the controls carried by ctx, or nil.
func ControlsFrom(ctx context.Context) *Controls {
	c, _ := ctx.Value(controlsKey{}).(*Controls)
	return c
}
