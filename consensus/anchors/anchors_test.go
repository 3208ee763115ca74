package anchors

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasa/plasa"
)

func TestLatestOnlyMovesForward(t *testing.T) {
	c := New()
	_, ok := c.Latest()
	assert.False(t, ok)

	assert.Equal(t, plasa.Anchor{Height: 5, Time: 50}, c.Observe(plasa.Anchor{Height: 5, Time: 50}))
	assert.Equal(t, plasa.Anchor{Height: 5, Time: 50}, c.Observe(plasa.Anchor{Height: 3, Time: 30}))
	latest, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(5), latest.Height)
}

func TestConcurrentObserve(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := int64(1); i <= 100; i++ {
		wg.Add(1)
		go func(h int64) {
			defer wg.Done()
			c.Observe(plasa.Anchor{Height: h, Time: h * 10})
		}(i)
	}
	wg.Wait()
	latest, _ := c.Latest()
	assert.Equal(t, int64(100), latest.Height)
}

func TestFreezeFirstWriteWins(t *testing.T) {
	c := New()
	k := FrozenKey{Points: "0xP", Account: "alice", Deadline: 1000}
	_, ok := c.Frozen(k)
	assert.False(t, ok)
	assert.Equal(t, int64(40), c.Freeze(k, 40))
	assert.Equal(t, int64(40), c.Freeze(k, 41))
	v, ok := c.Frozen(k)
	require.True(t, ok)
	assert.Equal(t, int64(40), v)
	assert.Equal(t, int64(1), c.FrozenCount())
}

func TestAnchorMemoOnlyForSettledTimes(t *testing.T) {
	c := New()
	latest := plasa.Anchor{Height: 10, Time: 1000}
	c.RememberAnchorAt(1000, plasa.Anchor{Height: 10, Time: 1000}, latest)
	_, ok := c.AnchorAt(1000)
	assert.False(t, ok)

	c.RememberAnchorAt(500, plasa.Anchor{Height: 4, Time: 480}, latest)
	a, ok := c.AnchorAt(500)
	require.True(t, ok)
	assert.Equal(t, int64(4), a.Height)
}
