// Package anchors holds the only state shared between compositions: the latest
// anchor seen, a memo of timestamp lookups, and the frozen deadline balances.
// Everything here is append-only.
package anchors

import (
	"fmt"
	"sync"
	"sync/atomic"

	"plasa/plasa"
)

type FrozenKey struct {
	Points   plasa.Address
	Account  plasa.Account
	Deadline plasa.Timestamp
}

func (k FrozenKey) String() string {
	return fmt.Sprintf("%s/%s@%d", k.Points, k.Account, k.Deadline)
}

type Cache struct {
	latest atomic.Pointer[plasa.Anchor]
	times  sync.Map // plasa.Timestamp -> plasa.Anchor
	frozen sync.Map // FrozenKey -> int64
	nFroze atomic.Int64
}

func New() *Cache {
	return &Cache{}
}

func (c *Cache) Latest() (plasa.Anchor, bool) {
	a := c.latest.Load()
	if a == nil {
		return plasa.Anchor{}, false
	}
	return *a, true
}

// Observe moves the latest anchor forward to a if a is newer, and returns the
// latest anchor after the update. The pointer never moves backwards.
func (c *Cache) Observe(a plasa.Anchor) plasa.Anchor {
	next := &a
	for {
		current := c.latest.Load()
		if current != nil && !a.After(*current) {
			return *current
		}
		if c.latest.CompareAndSwap(current, next) {
			return a
		}
	}
}

func (c *Cache) AnchorAt(t plasa.Timestamp) (plasa.Anchor, bool) {
	v, ok := c.times.Load(t)
	if !ok {
		return plasa.Anchor{}, false
	}
	return v.(plasa.Anchor), true
}

// RememberAnchorAt memoizes the anchor a source resolved for time t. The answer
// is only final once a later block exists, so lookups at or beyond the time of
// the latest anchor are not kept.
func (c *Cache) RememberAnchorAt(t plasa.Timestamp, a plasa.Anchor, latest plasa.Anchor) {
	if t >= latest.Time {
		return
	}
	c.times.LoadOrStore(t, a)
}

func (c *Cache) Frozen(k FrozenKey) (int64, bool) {
	v, ok := c.frozen.Load(k)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// Freeze records a balance at a deadline. The first value written for a key is
// kept forever; Freeze returns whatever is stored after the call.
func (c *Cache) Freeze(k FrozenKey, balance int64) int64 {
	v, loaded := c.frozen.LoadOrStore(k, balance)
	if !loaded {
		c.nFroze.Add(1)
		return balance
	}
	stored := v.(int64)
	if stored != balance {
		plasa.LogCLI(fmt.Sprintf("frozen balance %s is %d, ignoring later value %d", k, stored, balance), 2)
	}
	return stored
}

func (c *Cache) FrozenCount() int64 {
	return c.nFroze.Load()
}
