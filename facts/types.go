package facts

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"plasa/plasa"
)

type Kind string

const (
	KindPlasa    Kind = "plasa"
	KindSpace    Kind = "space"
	KindPoints   Kind = "points"
	KindQuestion Kind = "question"
	KindOption   Kind = "option"
	KindStamp    Kind = "stamp"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPlasa, KindSpace, KindPoints, KindQuestion, KindOption, KindStamp:
		return true
	}
	return false
}

// Field names. Fields that take an Arg say so.
const (
	// Every entity carries a sequence counter that the ledger bumps whenever the
	// entity is written to.
	FieldSequence = "sequence"

	FieldChainID  = "chainId"
	FieldVersion  = "version"
	FieldSpaces   = "spaces"
	FieldStamps   = "stamps"
	FieldUsername = "username" // plasa: Arg account; stamp: Arg stamp id

	FieldName               = "name"
	FieldDescription        = "description"
	FieldImageURL           = "imageUrl"
	FieldCreationTimestamp  = "creationTimestamp"
	FieldPoints             = "points"
	FieldQuestions          = "questions"
	FieldPermissionDefaults = "permissionDefaults"
	FieldRole               = "role"                // Arg account
	FieldPermissionOverride = "permissionOverrides" // Arg account

	FieldSymbol      = "symbol"
	FieldTotalSupply = "totalSupply"
	FieldHolders     = "holders"
	FieldBalanceOf   = "balanceOf" // Arg account

	FieldType      = "type"
	FieldTitle     = "title"
	FieldTags      = "tags"
	FieldCreator   = "creator"
	FieldKickoff   = "kickoff"
	FieldDeadline  = "deadline"
	FieldVetoed    = "vetoed"
	FieldVoteCount = "voteCount"
	FieldOptions   = "options"
	FieldSpace     = "space"
	FieldVoteOf    = "voteOf" // Arg account

	FieldProposer = "proposer"
	FieldVoters   = "voters"

	FieldPlatform        = "platform"
	FieldFollowedAccount = "followedAccount"
	FieldMultiplier      = "multiplier"
	FieldTokenOf         = "tokenOf"    // Arg account
	FieldOwnerOf         = "ownerOf"    // Arg stamp id
	FieldMintedAt        = "mintedAt"   // Arg stamp id
	FieldFollowedAt      = "followedAt" // Arg stamp id
)

// Query names one fact: one field of one entity, optionally keyed by an argument
// (an account or a stamp id). Query is comparable and is used as a map key.
type Query struct {
	Kind  Kind          `json:"kind"`
	ID    plasa.Address `json:"id"`
	Field string        `json:"field"`
	Arg   string        `json:"arg,omitempty"`
}

func (q Query) String() string {
	if q.Arg != "" {
		return fmt.Sprintf("%s/%s.%s(%s)", q.Kind, q.ID, q.Field, q.Arg)
	}
	return fmt.Sprintf("%s/%s.%s", q.Kind, q.ID, q.Field)
}

// Sequence is the canary query for an entity.
func Sequence(kind Kind, id plasa.Address) Query {
	return Query{Kind: kind, ID: id, Field: FieldSequence}
}

// Fact is a raw value as served by a Source, together with the anchor it was
// actually served at.
type Fact struct {
	Query  Query
	Value  interface{}
	Anchor plasa.Anchor
}

var (
	ErrNotFound = errors.New("fact not found")
	// ErrAnchorUnavailable is returned when a source cannot serve a fact as of the
	// requested anchor (pruned, or not yet reached).
	ErrAnchorUnavailable = errors.New("anchor unavailable")
)

// Source is the external ledger boundary. A nil anchor reads as of the latest
// anchor. A Fact whose Anchor differs from the requested one is skewed.
type Source interface {
	Read(ctx context.Context, q Query, at *plasa.Anchor) (Fact, error)
	LatestAnchor(ctx context.Context) (plasa.Anchor, error)
	// AnchorAt returns the latest anchor whose time is <= t.
	AnchorAt(ctx context.Context, t plasa.Timestamp) (plasa.Anchor, error)
}

// Reader serves every read of one composition as of a single pinned anchor.
type Reader interface {
	Anchor() plasa.Anchor
	Read(ctx context.Context, q Query) (Fact, error)
	ReadAt(ctx context.Context, q Query, at plasa.Anchor) (Fact, error)
	AnchorAt(ctx context.Context, t plasa.Timestamp) (plasa.Anchor, error)
}
