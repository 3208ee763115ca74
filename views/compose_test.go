package views

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasa/consensus/permissions"
	"plasa/consensus/points"
	"plasa/consensus/tally"
	"plasa/plasa"
)

var viewer = plasa.Viewer{Account: "alice", Username: "alice_on_x"}

func followerStamp(anchorTime plasa.Timestamp) RawStamp {
	return RawStamp{
		Anchor:          plasa.Anchor{Height: 12, Time: anchorTime},
		Viewer:          viewer,
		Address:         "0xT",
		Type:            plasa.StampFollowerSince,
		Name:            "Early follower",
		Symbol:          "EARLY",
		Platform:        "twitter",
		TotalSupply:     40,
		FollowedAccount: "plasa",
		Space:           "0xS",
		StampID:         "7",
		Owner:           "alice",
		MintedAt:        1625097600000,
		FollowedAt:      1625097600000,
	}
}

func TestTimeSinceFollow(t *testing.T) {
	raw := followerStamp(1625184000000)
	for i := 0; i < 3; i++ {
		v, err := ComposeStamp(raw)
		require.NoError(t, err)
		require.NotNil(t, v.User.Specific.FollowerSince)
		assert.Equal(t, int64(86400000), v.User.Specific.FollowerSince.TimeSinceFollow)
		assert.Equal(t, plasa.Timestamp(1625097600000), v.User.Specific.FollowerSince.FollowTimestamp)
	}
	// nothing is stored: a later anchor gives a later answer
	later, err := ComposeStamp(followerStamp(1625270400000))
	require.NoError(t, err)
	assert.Equal(t, int64(2*86400000), later.User.Specific.FollowerSince.TimeSinceFollow)
}

func TestStampVariants(t *testing.T) {
	raw := followerStamp(1625184000000)
	raw.Type = plasa.StampAccountOwnership
	raw.Username = "alice_on_x"
	v, err := ComposeStamp(raw)
	require.NoError(t, err)
	assert.NotNil(t, v.Data.Specific.AccountOwnership)
	assert.Nil(t, v.Data.Specific.FollowerSince)
	assert.Equal(t, "alice_on_x", v.User.Specific.AccountOwnership.Username)

	raw.StampID = ""
	v, err = ComposeStamp(raw)
	require.NoError(t, err)
	assert.False(t, v.User.Owns)
	assert.Nil(t, v.User.MintingTimestamp)
	assert.Nil(t, v.User.Specific.AccountOwnership)
}

func TestMalformedStamps(t *testing.T) {
	for name, breakIt := range map[string]func(r *RawStamp){
		"null type":         func(r *RawStamp) { r.Type = plasa.StampNull },
		"unknown type":      func(r *RawStamp) { r.Type = plasa.StampType(9) },
		"someone else's":    func(r *RawStamp) { r.Owner = "bob" },
		"minted later":      func(r *RawStamp) { r.MintedAt = r.Anchor.Time + 1 },
		"followed in future": func(r *RawStamp) { r.FollowedAt = r.Anchor.Time + 1 },
	} {
		raw := followerStamp(1625184000000)
		breakIt(&raw)
		_, err := ComposeStamp(raw)
		assert.True(t, errors.Is(err, plasa.ErrMalformedFact), name)
	}
}

func TestPointsStamp(t *testing.T) {
	raw := followerStamp(1625184000000)
	_, err := ComposePointsStamp(raw)
	assert.True(t, errors.Is(err, plasa.ErrMalformedFact))

	m := int64(3)
	raw.Multiplier = &m
	v, err := ComposePointsStamp(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Data.Multiplier)
	assert.Equal(t, "Early follower", v.Data.Name)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"multiplier":3`)
	assert.Contains(t, string(b), `"stampType":"FollowerSince"`)
}

func openQuestion(now plasa.Timestamp) RawQuestion {
	frozen := int64(30)
	return RawQuestion{
		Anchor:      plasa.Anchor{Height: 40, Time: now},
		Viewer:      viewer,
		Address:     "0xQ",
		Space:       "0xS",
		Type:        plasa.QuestionOpen,
		Title:       "Community garden budget",
		Description: "How should the community garden budget be spent next season?",
		Tags:        []string{"garden"},
		Creator:     "bob",
		Kickoff:     1000,
		Deadline:    2000,
		VoteCount:   3,
		Points: RawPoints{
			Summary: points.Summary{Address: "0xP", Name: "Karma", Symbol: "KRM", TotalSupply: 100},
			Balance: 12,
		},
		Frozen: &frozen,
		Tally: tally.Result{
			PerOption: map[plasa.Address]tally.OptionTally{
				"O1": {Count: 2, LiveWeight: 20},
				"O2": {Count: 1, LiveWeight: 5},
			},
			TotalCount: 3,
			Votes:      map[plasa.Account]plasa.Address{"alice": "O2", "bob": "O1", "carol": "O1"},
		},
		Permissions: permissions.SetOf(permissions.AddOpenQuestionOption),
		Options: []RawOption{
			{Address: "O1", Title: "Tools", Proposer: "bob"},
			{Address: "O2", Title: "Seeds", Proposer: "carol", Vetoed: true},
		},
	}
}

func TestActiveQuestion(t *testing.T) {
	v, err := ComposeQuestion(openQuestion(1500))
	require.NoError(t, err)
	assert.True(t, v.Data.IsActive)
	assert.True(t, v.User.CanVote)
	assert.Nil(t, v.User.PointsAtDeadline)
	require.NotNil(t, v.User.Specific.Open)
	assert.True(t, v.User.Specific.Open.CanAddOption)
	assert.True(t, v.User.Specific.Open.Voted)
	assert.Equal(t, 1, v.Data.Specific.Open.VetoedOptionCount)
	assert.Nil(t, v.Data.Specific.Fixed)

	require.Len(t, v.Options, 2)
	assert.False(t, v.Options[0].User.Voted)
	assert.True(t, v.Options[1].User.Voted)
	assert.Equal(t, int64(20), v.Options[0].Data.PointsCurrent)
	assert.Nil(t, v.Options[0].Data.PointsAtDeadline)
	assert.Equal(t, int64(800), v.Options[0].Data.Share)
	assert.Equal(t, int64(200), v.Options[1].Data.Share)
}

func TestQuestionWindow(t *testing.T) {
	for _, tc := range []struct {
		now    plasa.Timestamp
		vetoed bool
		active bool
	}{
		{now: 999, active: false},
		{now: 1000, active: true},
		{now: 1999, active: true},
		{now: 2000, active: false},
		{now: 1500, vetoed: true, active: false},
	} {
		raw := openQuestion(tc.now)
		raw.Vetoed = tc.vetoed
		p, err := ComposeQuestionPreview(raw)
		require.NoError(t, err)
		assert.Equal(t, tc.active, p.Data.IsActive, "now=%d", tc.now)
		assert.Equal(t, tc.active, p.User.CanVote, "now=%d", tc.now)
		assert.Equal(t, tc.active, p.User.Specific.Open.CanAddOption, "now=%d", tc.now)
	}
}

func TestNoVoteWithoutBalance(t *testing.T) {
	raw := openQuestion(1500)
	raw.Points.Balance = 0
	p, err := ComposeQuestionPreview(raw)
	require.NoError(t, err)
	assert.True(t, p.Data.IsActive)
	assert.False(t, p.User.CanVote)
}

func TestClosedQuestionShowsFrozenPoints(t *testing.T) {
	raw := openQuestion(2500)
	w := int64(18)
	raw.Tally.PerOption["O1"] = tally.OptionTally{Count: 2, LiveWeight: 20, FrozenWeight: &w}
	v, err := ComposeQuestion(raw)
	require.NoError(t, err)
	require.NotNil(t, v.User.PointsAtDeadline)
	assert.Equal(t, int64(30), *v.User.PointsAtDeadline)
	require.NotNil(t, v.Options[0].Data.PointsAtDeadline)
	assert.Equal(t, int64(18), *v.Options[0].Data.PointsAtDeadline)

	// the view holds its own copies
	*raw.Frozen = 99
	w = 99
	assert.Equal(t, int64(30), *v.User.PointsAtDeadline)
	assert.Equal(t, int64(18), *v.Options[0].Data.PointsAtDeadline)
}

func TestFixedQuestion(t *testing.T) {
	raw := openQuestion(1500)
	raw.Type = plasa.QuestionFixed
	raw.Options[1].Vetoed = false
	v, err := ComposeQuestion(raw)
	require.NoError(t, err)
	require.NotNil(t, v.Data.Specific.Fixed)
	assert.Equal(t, 2, v.Data.Specific.Fixed.OptionCount)
	assert.True(t, v.User.Specific.Fixed.Voted)
	assert.Nil(t, v.User.Specific.Open)
}

func TestMalformedQuestions(t *testing.T) {
	for name, breakIt := range map[string]func(r *RawQuestion){
		"null type":            func(r *RawQuestion) { r.Type = plasa.QuestionNull },
		"kickoff after end":    func(r *RawQuestion) { r.Kickoff = 3000 },
		"count mismatch":       func(r *RawQuestion) { r.VoteCount = 4 },
		"untallied option":     func(r *RawQuestion) { r.Options[1].Address = "O3" },
		"missing option":       func(r *RawQuestion) { r.Options = r.Options[:1] },
		"vetoed fixed option":  func(r *RawQuestion) { r.Type = plasa.QuestionFixed },
	} {
		raw := openQuestion(1500)
		raw.Options = append([]RawOption(nil), raw.Options...)
		breakIt(&raw)
		_, err := ComposeQuestion(raw)
		assert.True(t, errors.Is(err, plasa.ErrMalformedFact), name)
	}
}

func TestTagsFallBackToKeywords(t *testing.T) {
	raw := openQuestion(1500)
	raw.Tags = nil
	p, err := ComposeQuestionPreview(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Data.Tags)
	assert.LessOrEqual(t, len(p.Data.Tags), maxTags)
	assert.Equal(t, Keywords(raw.Title, raw.Description), p.Data.Tags)

	assert.Equal(t, []string{}, Keywords("", ""))
}

func TestComposeDoesNotMutateInput(t *testing.T) {
	raw := openQuestion(2500)
	before := openQuestion(2500)
	_, err := ComposeQuestion(raw)
	require.NoError(t, err)
	assert.Equal(t, before, raw)
}

func TestSpace(t *testing.T) {
	m := int64(2)
	stamp := followerStamp(1500)
	stamp.MintedAt, stamp.FollowedAt = 1000, 1000
	stamp.Multiplier = &m
	raw := RawSpace{
		Anchor:  plasa.Anchor{Height: 40, Time: 1500},
		Viewer:  viewer,
		Address: "0xS",
		Name:    "Gardeners",
		Access: permissions.Resolve(permissions.Input{Role: permissions.RoleAdmin}),
		Points: RawPoints{
			Summary: points.Summary{Address: "0xP", Name: "Karma", TopHolders: []points.Holder{{Account: "bob", Balance: 9}}},
			Balance: 12,
		},
		PointStamps: []RawStamp{stamp},
		Questions:   []RawQuestion{openQuestion(1500)},
	}
	v, err := ComposeSpace(raw)
	require.NoError(t, err)
	assert.Equal(t, "Gardeners", v.Data.Name)
	assert.True(t, v.User.Roles.Admin)
	assert.True(t, v.User.Permissions.Has(permissions.CreateFixedQuestion))
	assert.Equal(t, int64(12), v.Points.Points.User.CurrentBalance)
	require.Len(t, v.Points.Stamps, 1)
	assert.Equal(t, int64(2), v.Points.Stamps[0].Data.Multiplier)
	require.Len(t, v.Questions, 1)

	raw.Questions[0].Space = "0xOther"
	_, err = ComposeSpace(raw)
	assert.True(t, errors.Is(err, plasa.ErrMalformedFact))
}

func TestPlasaUsernameFallsBackToViewer(t *testing.T) {
	v, err := ComposePlasa(RawPlasa{Viewer: viewer, Address: "0xR", ChainID: 10, Version: "1"})
	require.NoError(t, err)
	assert.Equal(t, "alice_on_x", v.User.Username)
	assert.Equal(t, []SpacePreview{}, v.Spaces)

	v, err = ComposePlasa(RawPlasa{Viewer: viewer, Username: "alice.plasa"})
	require.NoError(t, err)
	assert.Equal(t, "alice.plasa", v.User.Username)
}

func TestComposeDispatch(t *testing.T) {
	out, err := Compose(KindStamp, followerStamp(1625184000000))
	require.NoError(t, err)
	_, ok := out.(StampView)
	assert.True(t, ok)

	_, err = Compose(KindQuestion, followerStamp(1))
	assert.Error(t, err)
	_, err = Compose(Kind("ballot"), nil)
	assert.Error(t, err)

	bad := followerStamp(1)
	_, err = Compose(KindStamp, bad)
	assert.True(t, errors.Is(err, plasa.ErrMalformedFact))
}
