package points

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasa/consensus/anchors"
	"plasa/consensus/snapshot"
	"plasa/facts"
	"plasa/plasa"
)

const pts = "0xP"

func bal(account string, v int64) facts.Write {
	return facts.Write{Query: balanceQuery(pts, account), Value: v}
}

func meta(field string, v interface{}) facts.Write {
	return facts.Write{Query: facts.Query{Kind: facts.KindPoints, ID: pts, Field: field}, Value: v}
}

type fixture struct {
	ledger *facts.Ledger
	coord  *snapshot.Coordinator
	engine *Engine
}

func newFixture(t *testing.T) fixture {
	l := facts.NewLedger()
	_, err := l.Commit(1000,
		meta(facts.FieldName, "Karma"), meta(facts.FieldSymbol, "KRM"), meta(facts.FieldTotalSupply, int64(100)),
		meta(facts.FieldHolders, []interface{}{"alice", "bob", "carol", "dave"}),
		bal("alice", 40), bal("bob", 25), bal("carol", 25),
	)
	require.NoError(t, err)
	_, err = l.Commit(2000, bal("alice", 10), bal("dave", 5))
	require.NoError(t, err)
	cache := anchors.New()
	return fixture{
		ledger: l,
		coord:  snapshot.New(l, cache, snapshot.Options{MaxAttempts: 3, FanOut: 2}),
		engine: New(cache, 2, 2),
	}
}

func (fx fixture) run(t *testing.T, fn func(ctx context.Context, r facts.Reader) error) {
	require.NoError(t, fx.coord.Run(context.Background(), facts.Sequence(facts.KindPoints, pts), fn))
}

func TestBalance(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		b, err := fx.engine.Balance(ctx, r, pts, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(10), b)
		b, err = fx.engine.Balance(ctx, r, pts, "nobody")
		require.NoError(t, err)
		assert.Equal(t, int64(0), b)
		return nil
	})
}

func TestNegativeBalanceIsMalformed(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ledger.Commit(3000, bal("mallory", -3))
	require.NoError(t, err)
	err = fx.coord.Run(context.Background(), facts.Sequence(facts.KindPoints, pts), func(ctx context.Context, r facts.Reader) error {
		_, err := fx.engine.Balance(ctx, r, pts, "mallory")
		return err
	})
	assert.True(t, errors.Is(err, plasa.ErrMalformedFact))
}

func TestBalanceAt(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		b, err := fx.engine.BalanceAt(ctx, r, pts, "alice", 1500)
		require.NoError(t, err)
		assert.Equal(t, int64(40), b)
		b, err = fx.engine.BalanceAt(ctx, r, pts, "alice", 500)
		require.NoError(t, err)
		assert.Equal(t, int64(0), b)
		_, err = fx.engine.BalanceAt(ctx, r, pts, "alice", 2001)
		assert.True(t, errors.Is(err, ErrFuture))
		return nil
	})
}

// A frozen balance survives later ledger changes and later queries.
func TestFreezeIsStable(t *testing.T) {
	fx := newFixture(t)
	deadline := plasa.Timestamp(1500)
	var frozen int64
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		v, ok, err := fx.engine.Freeze(ctx, r, pts, "alice", deadline)
		require.NoError(t, err)
		require.True(t, ok)
		frozen = v
		return nil
	})
	assert.Equal(t, int64(40), frozen)

	_, err := fx.ledger.Commit(3000, bal("alice", 999))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		fx.run(t, func(ctx context.Context, r facts.Reader) error {
			v, err := fx.engine.BalanceAt(ctx, r, pts, "alice", deadline)
			require.NoError(t, err)
			assert.Equal(t, frozen, v)
			v, ok, err := fx.engine.Freeze(ctx, r, pts, "alice", deadline)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, frozen, v)
			return nil
		})
	}
}

// A block that lands at the deadline after a view was composed still counts.
func TestFreezeWaitsForDeadlineToSettle(t *testing.T) {
	fx := newFixture(t)
	deadline := plasa.Timestamp(2000)
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		v, ok, err := fx.engine.Freeze(ctx, r, pts, "alice", deadline)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(10), v)
		return nil
	})
	assert.Equal(t, int64(0), fx.coord.Anchors().FrozenCount())

	_, err := fx.ledger.Commit(2000, bal("alice", 77))
	require.NoError(t, err)
	_, err = fx.ledger.Commit(2500, bal("alice", 3))
	require.NoError(t, err)

	fresh := New(anchors.New(), 2, 2)
	for _, engine := range []*Engine{fx.engine, fresh} {
		fx.run(t, func(ctx context.Context, r facts.Reader) error {
			v, ok, err := engine.Freeze(ctx, r, pts, "alice", deadline)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(77), v)
			return nil
		})
	}
	assert.Equal(t, int64(1), fx.coord.Anchors().FrozenCount())
}

func TestFreezeBeforeDeadline(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		_, ok, err := fx.engine.Freeze(ctx, r, pts, "alice", 5000)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	assert.Equal(t, int64(0), fx.coord.Anchors().FrozenCount())
}

func TestSummary(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		s, err := fx.engine.Summary(ctx, r, pts)
		require.NoError(t, err)
		assert.Equal(t, "Karma", s.Name)
		assert.Equal(t, "KRM", s.Symbol)
		assert.Equal(t, int64(100), s.TotalSupply)
		// ties broken by account
		assert.Equal(t, []Holder{{"bob", 25}, {"carol", 25}}, s.TopHolders)
		return nil
	})
}

func TestHolderBalancesWithinSupply(t *testing.T) {
	fx := newFixture(t)
	fx.engine = New(fx.coord.Anchors(), 100, 4)
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		s, err := fx.engine.Summary(ctx, r, pts)
		require.NoError(t, err)
		var sum int64
		for _, h := range s.TopHolders {
			sum += h.Balance
		}
		assert.LessOrEqual(t, sum, s.TotalSupply, fmt.Sprint(s.TopHolders))
		assert.Len(t, s.TopHolders, 4)
		return nil
	})
}

func TestSummaryMissingPoints(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, func(ctx context.Context, r facts.Reader) error {
		_, err := fx.engine.Summary(ctx, r, "0xNope")
		assert.True(t, errors.Is(err, plasa.ErrNotFound))
		return nil
	})
}
