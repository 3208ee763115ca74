// Package views holds the JSON view shapes and the pure functions that compose
// them out of decoded facts and engine results.
//
// Every view is split into data (intrinsic to the entity) and user (relative to
// the viewer). Previews carry data and user only; full views add their children.
// Question and stamp variants put their variant-only fields in a specific slot,
// in which exactly one variant is set.
package views

import (
	"plasa/consensus/permissions"
	"plasa/consensus/points"
	"plasa/plasa"
)

type PlasaData struct {
	ContractAddress plasa.Address `json:"contractAddress"`
	ChainID         int64         `json:"chainId"`
	Version         string        `json:"version"`
}

type PlasaUser struct {
	Username string `json:"username"`
}

type PlasaView struct {
	Data   PlasaData      `json:"data"`
	User   PlasaUser      `json:"user"`
	Stamps []StampView    `json:"stamps"`
	Spaces []SpacePreview `json:"spaces"`
}

type SpaceData struct {
	ContractAddress   plasa.Address   `json:"contractAddress"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	ImageURL          string          `json:"imageUrl"`
	CreationTimestamp plasa.Timestamp `json:"creationTimestamp"`
}

type SpaceUser struct {
	Roles       permissions.Roles `json:"roles"`
	Permissions permissions.Set   `json:"permissions"`
}

type SpacePreview struct {
	Data SpaceData `json:"data"`
	User SpaceUser `json:"user"`
}

type SpaceView struct {
	SpacePreview
	Points    SpacePointsView   `json:"points"`
	Questions []QuestionPreview `json:"questions"`
}

// SpacePointsView is a space's points together with the follower-since stamps
// that feed them, each with its multiplier.
type SpacePointsView struct {
	Points PointsView        `json:"points"`
	Stamps []PointsStampView `json:"stamps"`
}

type PointsData struct {
	ContractAddress plasa.Address   `json:"contractAddress"`
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	TotalSupply     int64           `json:"totalSupply"`
	TopHolders      []points.Holder `json:"top10Holders"`
}

type PointsUser struct {
	CurrentBalance int64 `json:"currentBalance"`
}

type PointsView struct {
	Data PointsData `json:"data"`
	User PointsUser `json:"user"`
}

type QuestionData struct {
	ContractAddress plasa.Address        `json:"contractAddress"`
	QuestionType    plasa.QuestionType   `json:"questionType"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Tags            []string             `json:"tags"`
	Creator         plasa.Account        `json:"creator"`
	Kickoff         plasa.Timestamp      `json:"kickoff"`
	Deadline        plasa.Timestamp      `json:"deadline"`
	IsActive        bool                 `json:"isActive"`
	Vetoed          bool                 `json:"vetoed"`
	VoteCount       int64                `json:"voteCount"`
	Specific        QuestionDataSpecific `json:"specific"`
}

type QuestionDataSpecific struct {
	Open  *OpenQuestionData  `json:"open,omitempty"`
	Fixed *FixedQuestionData `json:"fixed,omitempty"`
}

type OpenQuestionData struct {
	OptionCount       int `json:"optionCount"`
	VetoedOptionCount int `json:"vetoedOptionCount"`
}

type FixedQuestionData struct {
	OptionCount int `json:"optionCount"`
}

type QuestionUser struct {
	CanVote bool `json:"canVote"`
	// PointsAtDeadline is the viewer's balance frozen at the deadline; absent
	// until the deadline has passed.
	PointsAtDeadline *int64              `json:"pointsAtDeadline,omitempty"`
	Specific         QuestionUserSpecific `json:"specific"`
}

type QuestionUserSpecific struct {
	Open  *OpenQuestionUser  `json:"open,omitempty"`
	Fixed *FixedQuestionUser `json:"fixed,omitempty"`
}

type OpenQuestionUser struct {
	Voted        bool `json:"voted"`
	CanAddOption bool `json:"canAddOption"`
}

type FixedQuestionUser struct {
	Voted bool `json:"voted"`
}

type QuestionPreview struct {
	Data   QuestionData `json:"data"`
	User   QuestionUser `json:"user"`
	Points PointsView   `json:"points"`
}

type QuestionView struct {
	QuestionPreview
	Options []OptionView `json:"options"`
}

type OptionData struct {
	ContractAddress  plasa.Address `json:"contractAddress"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Proposer         plasa.Account `json:"proposer"`
	Vetoed           bool          `json:"vetoed"`
	VoteCount        int64         `json:"voteCount"`
	PointsCurrent    int64         `json:"pointsCurrent"`
	PointsAtDeadline *int64        `json:"pointsAtDeadline,omitempty"`
	// Share is PointsCurrent in thousandths of the points on all options.
	Share int64 `json:"sharePermille"`
}

type OptionUser struct {
	Voted bool `json:"voted"`
}

type OptionView struct {
	Data OptionData `json:"data"`
	User OptionUser `json:"user"`
}

type StampData struct {
	ContractAddress plasa.Address     `json:"contractAddress"`
	StampType       plasa.StampType   `json:"stampType"`
	Name            string            `json:"name"`
	Symbol          string            `json:"symbol"`
	Platform        string            `json:"platform"`
	TotalSupply     int64             `json:"totalSupply"`
	Specific        StampDataSpecific `json:"specific"`
}

type StampDataSpecific struct {
	AccountOwnership *AccountOwnershipData `json:"accountOwnership,omitempty"`
	FollowerSince    *FollowerSinceData    `json:"followerSince,omitempty"`
}

type AccountOwnershipData struct{}

type FollowerSinceData struct {
	FollowedAccount string        `json:"followedAccount"`
	Space           plasa.Address `json:"space"`
}

type StampUser struct {
	Owns             bool             `json:"owns"`
	StampID          string           `json:"stampId,omitempty"`
	MintingTimestamp *plasa.Timestamp `json:"mintingTimestamp,omitempty"`
	// Specific is only set when the viewer owns the stamp.
	Specific StampUserSpecific `json:"specific"`
}

type StampUserSpecific struct {
	AccountOwnership *AccountOwnershipUser `json:"accountOwnership,omitempty"`
	FollowerSince    *FollowerSinceUser    `json:"followerSince,omitempty"`
}

type AccountOwnershipUser struct {
	Username string `json:"userUsername,omitempty"`
}

type FollowerSinceUser struct {
	FollowTimestamp plasa.Timestamp `json:"followTimestamp"`
	// TimeSinceFollow is anchor time minus FollowTimestamp, in milliseconds.
	TimeSinceFollow int64 `json:"timeSinceFollow"`
}

type StampView struct {
	Data StampData `json:"data"`
	User StampUser `json:"user"`
}

type PointsStampData struct {
	StampData
	Multiplier int64 `json:"multiplier"`
}

type PointsStampView struct {
	Data PointsStampData `json:"data"`
	User StampUser       `json:"user"`
}
