package views

import (
	"plasa/consensus/permissions"
	"plasa/consensus/points"
	"plasa/consensus/tally"
	"plasa/plasa"
)

// The Raw* records are decoded facts plus engine results, everything a compose
// function needs. They are never modified by composition.

type RawPlasa struct {
	Anchor   plasa.Anchor
	Viewer   plasa.Viewer
	Address  plasa.Address
	ChainID  int64
	Version  string
	Username string
	Spaces   []RawSpace
	Stamps   []RawStamp
}

type RawSpace struct {
	Anchor            plasa.Anchor
	Viewer            plasa.Viewer
	Address           plasa.Address
	Name              string
	Description       string
	ImageURL          string
	CreationTimestamp plasa.Timestamp
	Access            permissions.Resolution
	// Points, PointStamps and Questions are only needed for a full view.
	Points      RawPoints
	PointStamps []RawStamp
	Questions   []RawQuestion
}

type RawPoints struct {
	Summary points.Summary
	Balance int64
}

type RawQuestion struct {
	Anchor      plasa.Anchor
	Viewer      plasa.Viewer
	Address     plasa.Address
	Space       plasa.Address
	Type        plasa.QuestionType
	Title       string
	Description string
	Tags        []string
	Creator     plasa.Account
	Kickoff     plasa.Timestamp
	Deadline    plasa.Timestamp
	Vetoed      bool
	VoteCount   int64
	Points      RawPoints
	// Frozen is the viewer's balance frozen at the deadline, once reached.
	Frozen      *int64
	Tally       tally.Result
	Permissions permissions.Set
	Options     []RawOption
}

type RawOption struct {
	Address     plasa.Address
	Title       string
	Description string
	Proposer    plasa.Account
	Vetoed      bool
}

type RawStamp struct {
	Anchor          plasa.Anchor
	Viewer          plasa.Viewer
	Address         plasa.Address
	Type            plasa.StampType
	Name            string
	Symbol          string
	Platform        string
	TotalSupply     int64
	FollowedAccount string
	Space           plasa.Address
	// Multiplier is set for stamps that feed a space's points.
	Multiplier *int64
	// StampID is empty when the viewer holds no token of this stamp.
	StampID    string
	Owner      plasa.Account
	MintedAt   plasa.Timestamp
	FollowedAt plasa.Timestamp
	Username   string
}
