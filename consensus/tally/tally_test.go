package tally

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasa/consensus/anchors"
	"plasa/consensus/points"
	"plasa/consensus/snapshot"
	"plasa/facts"
	"plasa/plasa"
)

const (
	question = "0xQ"
	pts      = "0xP"
)

type fixture struct {
	ledger  *facts.Ledger
	coord   *snapshot.Coordinator
	counter *Counter
}

func newFixture(t *testing.T, writes ...facts.Write) fixture {
	l := facts.NewLedger()
	writes = append(writes, facts.Write{Query: facts.Query{Kind: facts.KindQuestion, ID: question, Field: facts.FieldTitle}, Value: "Q"})
	_, err := l.Commit(1000, writes...)
	require.NoError(t, err)
	cache := anchors.New()
	return fixture{
		ledger:  l,
		coord:   snapshot.New(l, cache, snapshot.Options{MaxAttempts: 3, FanOut: 8}),
		counter: New(points.New(cache, 10, 8), 8),
	}
}

func (fx fixture) tally(in Input) (Result, error) {
	return snapshot.Compose(context.Background(), fx.coord, facts.Sequence(facts.KindQuestion, question),
		func(ctx context.Context, r facts.Reader) (Result, error) {
			return fx.counter.Tally(ctx, r, in)
		})
}

func bal(account string, v int64) facts.Write {
	return facts.Write{Query: facts.Query{Kind: facts.KindPoints, ID: pts, Field: facts.FieldBalanceOf, Arg: account}, Value: v}
}

func voters(prefix string, n int) []plasa.Account {
	out := make([]plasa.Account, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func count(n int64) *int64 {
	return &n
}

func TestOptionCountsMustSumToQuestionCount(t *testing.T) {
	fx := newFixture(t)
	in := Input{
		Question: question, Type: plasa.QuestionFixed, Points: pts, Deadline: 5000, VoteCount: 1500,
		Options: []Option{
			{ID: "O1", Voters: voters("a", 850), DeclaredCount: count(850)},
			{ID: "O2", Voters: voters("b", 600), DeclaredCount: count(600)},
			{ID: "O3", Voters: voters("c", 50), DeclaredCount: count(50)},
		},
	}
	res, err := fx.tally(in)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.TotalCount)
	assert.Equal(t, int64(850), res.PerOption["O1"].Count)
	assert.Equal(t, int64(600), res.PerOption["O2"].Count)
	assert.Equal(t, int64(50), res.PerOption["O3"].Count)
	var sum int64
	for _, o := range res.PerOption {
		sum += o.Count
	}
	assert.Equal(t, in.VoteCount, sum)

	for _, bad := range []func(in *Input){
		func(in *Input) { in.VoteCount = 1499 },
		func(in *Input) { in.Options[2].Voters = voters("c", 49); in.Options[2].DeclaredCount = nil },
		func(in *Input) { in.Options[0].DeclaredCount = count(851) },
	} {
		broken := in
		broken.Options = append([]Option(nil), in.Options...)
		bad(&broken)
		_, err := fx.tally(broken)
		assert.True(t, errors.Is(err, plasa.ErrMalformedFact), "%v", err)
	}
}

func TestRepeatedVoteCountsOnce(t *testing.T) {
	fx := newFixture(t, bal("alice", 7))
	res, err := fx.tally(Input{
		Question: question, Type: plasa.QuestionFixed, Points: pts, Deadline: 5000, VoteCount: 1,
		Options: []Option{{ID: "O1", Voters: []string{"alice", "alice"}}, {ID: "O2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.PerOption["O1"].Count)
	assert.Equal(t, int64(7), res.PerOption["O1"].LiveWeight)
	assert.Nil(t, res.PerOption["O1"].FrozenWeight)
	o, ok := res.VoteOf("alice")
	require.True(t, ok)
	assert.Equal(t, "O1", o)
}

func TestFixedQuestionRejectsTwoChoices(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.tally(Input{
		Question: question, Type: plasa.QuestionFixed, Points: pts, Deadline: 5000, VoteCount: 2,
		Options: []Option{{ID: "O1", Voters: []string{"alice"}}, {ID: "O2", Voters: []string{"alice"}}},
	})
	assert.True(t, errors.Is(err, plasa.ErrMalformedFact))
}

func TestOpenQuestionVoteReplacement(t *testing.T) {
	voteOf := facts.Write{Query: facts.Query{Kind: facts.KindQuestion, ID: question, Field: facts.FieldVoteOf, Arg: "alice"}, Value: "O2"}
	fx := newFixture(t, voteOf, bal("alice", 3), bal("bob", 4))
	res, err := fx.tally(Input{
		Question: question, Type: plasa.QuestionOpen, Points: pts, Deadline: 5000, VoteCount: 2,
		Options: []Option{{ID: "O1", Voters: []string{"alice", "bob"}}, {ID: "O2", Voters: []string{"alice"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, OptionTally{Count: 1, LiveWeight: 4}, res.PerOption["O1"])
	assert.Equal(t, OptionTally{Count: 1, LiveWeight: 3}, res.PerOption["O2"])
}

func TestOpenQuestionUnresolvableDuplicate(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.tally(Input{
		Question: question, Type: plasa.QuestionOpen, Points: pts, Deadline: 5000, VoteCount: 1,
		Options: []Option{{ID: "O1", Voters: []string{"alice"}}, {ID: "O2", Voters: []string{"alice"}}},
	})
	assert.True(t, errors.Is(err, plasa.ErrMalformedFact))
}

func TestNullQuestionCannotBeTallied(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.tally(Input{Question: question, Options: []Option{{ID: "O1"}}})
	assert.True(t, errors.Is(err, plasa.ErrMalformedFact))
}

func TestFrozenWeightAfterDeadline(t *testing.T) {
	fx := newFixture(t, bal("alice", 10), bal("bob", 20))
	_, err := fx.ledger.Commit(2000, bal("alice", 100))
	require.NoError(t, err)
	_, err = fx.ledger.Commit(3000, facts.Write{Query: facts.Query{Kind: facts.KindQuestion, ID: question, Field: facts.FieldTitle}, Value: "Q"})
	require.NoError(t, err)
	in := Input{
		Question: question, Type: plasa.QuestionFixed, Points: pts, Deadline: 1500, VoteCount: 2,
		Options: []Option{{ID: "O1", Voters: []string{"alice"}}, {ID: "O2", Voters: []string{"bob"}}},
	}
	res, err := fx.tally(in)
	require.NoError(t, err)
	require.NotNil(t, res.PerOption["O1"].FrozenWeight)
	assert.Equal(t, int64(10), *res.PerOption["O1"].FrozenWeight)
	assert.Equal(t, int64(100), res.PerOption["O1"].LiveWeight)
	assert.Equal(t, int64(20), *res.PerOption["O2"].FrozenWeight)

	// later balance changes never reach the frozen weights
	_, err = fx.ledger.Commit(4000, bal("alice", 1), facts.Write{Query: facts.Query{Kind: facts.KindQuestion, ID: question, Field: facts.FieldTitle}, Value: "Q"})
	require.NoError(t, err)
	again, err := fx.tally(in)
	require.NoError(t, err)
	assert.Equal(t, int64(10), *again.PerOption["O1"].FrozenWeight)
	assert.Equal(t, int64(1), again.PerOption["O1"].LiveWeight)
}
