package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasa/plasa"
)

// stampFacts re-derives the stamp facts exposed by a view.
func stampFacts(v StampView) RawStamp {
	r := RawStamp{
		Address:     v.Data.ContractAddress,
		Type:        v.Data.StampType,
		Name:        v.Data.Name,
		Symbol:      v.Data.Symbol,
		Platform:    v.Data.Platform,
		TotalSupply: v.Data.TotalSupply,
		StampID:     v.User.StampID,
	}
	if v.User.MintingTimestamp != nil {
		r.MintedAt = *v.User.MintingTimestamp
	}
	if fs := v.Data.Specific.FollowerSince; fs != nil {
		r.FollowedAccount, r.Space = fs.FollowedAccount, fs.Space
	}
	if fs := v.User.Specific.FollowerSince; fs != nil {
		r.FollowedAt = fs.FollowTimestamp
	}
	if ao := v.User.Specific.AccountOwnership; ao != nil {
		r.Username = ao.Username
	}
	return r
}

func TestStampRoundTrip(t *testing.T) {
	raw := followerStamp(1625184000000)
	v, err := ComposeStamp(raw)
	require.NoError(t, err)

	back := stampFacts(v)
	// context the view does not expose
	back.Anchor, back.Viewer, back.Owner = raw.Anchor, raw.Viewer, raw.Viewer.Account
	assert.Equal(t, raw, back)

	again, err := ComposeStamp(back)
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestQuestionRoundTripThroughJSON(t *testing.T) {
	raw := openQuestion(2500)
	v, err := ComposeQuestion(raw)
	require.NoError(t, err)
	digest, b, err := Digest(v)
	require.NoError(t, err)

	var decoded QuestionView
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, raw.Title, decoded.Data.Title)
	assert.Equal(t, raw.Description, decoded.Data.Description)
	assert.Equal(t, raw.Creator, decoded.Data.Creator)
	assert.Equal(t, raw.Kickoff, decoded.Data.Kickoff)
	assert.Equal(t, raw.Deadline, decoded.Data.Deadline)
	assert.Equal(t, raw.VoteCount, decoded.Data.VoteCount)
	assert.Equal(t, plasa.QuestionOpen, decoded.Data.QuestionType)
	assert.Equal(t, raw.Tags, decoded.Data.Tags)
	for i, o := range raw.Options {
		assert.Equal(t, o.Address, decoded.Options[i].Data.ContractAddress)
		assert.Equal(t, o.Title, decoded.Options[i].Data.Title)
		assert.Equal(t, o.Proposer, decoded.Options[i].Data.Proposer)
		assert.Equal(t, o.Vetoed, decoded.Options[i].Data.Vetoed)
	}
	again, _, err := Digest(decoded)
	require.NoError(t, err)
	assert.Equal(t, digest, again)
}
