package views

import (
	"github.com/pkg/errors"

	"plasa/consensus/permissions"
	"plasa/consensus/points"
	"plasa/facts"
	"plasa/plasa"
)

type Kind string

const (
	KindPlasa           Kind = "plasa"
	KindSpace           Kind = "space"
	KindSpacePreview    Kind = "spacePreview"
	KindPoints          Kind = "points"
	KindQuestion        Kind = "question"
	KindQuestionPreview Kind = "questionPreview"
	KindStamp           Kind = "stamp"
	KindPointsStamp     Kind = "pointsStamp"
)

// Compose builds the view of the given kind from its raw record. A record that
// breaks an invariant the view relies on yields a MalformedFact error, which is
// logged along with the record.
func Compose(kind Kind, raw interface{}) (interface{}, error) {
	v, err := compose(kind, raw)
	if err != nil && plasa.KindOf(err) == plasa.KindMalformedFact {
		plasa.LogMalformed(err, raw)
	}
	return v, err
}

func compose(kind Kind, raw interface{}) (interface{}, error) {
	switch kind {
	case KindPlasa:
		if r, ok := raw.(RawPlasa); ok {
			return ComposePlasa(r)
		}
	case KindSpace:
		if r, ok := raw.(RawSpace); ok {
			return ComposeSpace(r)
		}
	case KindSpacePreview:
		if r, ok := raw.(RawSpace); ok {
			return ComposeSpacePreview(r), nil
		}
	case KindPoints:
		if r, ok := raw.(RawPoints); ok {
			return ComposePoints(r), nil
		}
	case KindQuestion:
		if r, ok := raw.(RawQuestion); ok {
			return ComposeQuestion(r)
		}
	case KindQuestionPreview:
		if r, ok := raw.(RawQuestion); ok {
			return ComposeQuestionPreview(r)
		}
	case KindStamp:
		if r, ok := raw.(RawStamp); ok {
			return ComposeStamp(r)
		}
	case KindPointsStamp:
		if r, ok := raw.(RawStamp); ok {
			return ComposePointsStamp(r)
		}
	default:
		return nil, errors.Errorf("unknown view kind %q", kind)
	}
	return nil, errors.Errorf("%s view cannot be composed from %T", kind, raw)
}

func ComposePlasa(raw RawPlasa) (PlasaView, error) {
	v := PlasaView{
		Data: PlasaData{ContractAddress: raw.Address, ChainID: raw.ChainID, Version: raw.Version},
		User: PlasaUser{Username: raw.Username},
	}
	if v.User.Username == "" {
		v.User.Username = raw.Viewer.Username
	}
	v.Spaces = make([]SpacePreview, 0, len(raw.Spaces))
	for _, s := range raw.Spaces {
		v.Spaces = append(v.Spaces, ComposeSpacePreview(s))
	}
	v.Stamps = make([]StampView, 0, len(raw.Stamps))
	for _, s := range raw.Stamps {
		sv, err := ComposeStamp(s)
		if err != nil {
			return PlasaView{}, err
		}
		v.Stamps = append(v.Stamps, sv)
	}
	return v, nil
}

func ComposeSpacePreview(raw RawSpace) SpacePreview {
	return SpacePreview{
		Data: SpaceData{
			ContractAddress:   raw.Address,
			Name:              raw.Name,
			Description:       raw.Description,
			ImageURL:          raw.ImageURL,
			CreationTimestamp: raw.CreationTimestamp,
		},
		User: SpaceUser{Roles: raw.Access.Roles, Permissions: raw.Access.Permissions},
	}
}

func ComposeSpace(raw RawSpace) (SpaceView, error) {
	v := SpaceView{
		SpacePreview: ComposeSpacePreview(raw),
		Points:       SpacePointsView{Points: ComposePoints(raw.Points)},
	}
	v.Points.Stamps = make([]PointsStampView, 0, len(raw.PointStamps))
	for _, s := range raw.PointStamps {
		if s.Space != raw.Address {
			return SpaceView{}, plasa.Malformed("stamp", s.Address, facts.FieldSpace, "feeds space %s, listed under %s", s.Space, raw.Address)
		}
		ps, err := ComposePointsStamp(s)
		if err != nil {
			return SpaceView{}, err
		}
		v.Points.Stamps = append(v.Points.Stamps, ps)
	}
	v.Questions = make([]QuestionPreview, 0, len(raw.Questions))
	for _, q := range raw.Questions {
		if q.Space != raw.Address {
			return SpaceView{}, plasa.Malformed("question", q.Address, facts.FieldSpace, "belongs to space %s, listed under %s", q.Space, raw.Address)
		}
		qp, err := ComposeQuestionPreview(q)
		if err != nil {
			return SpaceView{}, err
		}
		v.Questions = append(v.Questions, qp)
	}
	return v, nil
}

func ComposePoints(raw RawPoints) PointsView {
	holders := make([]points.Holder, len(raw.Summary.TopHolders))
	copy(holders, raw.Summary.TopHolders)
	return PointsView{
		Data: PointsData{
			ContractAddress: raw.Summary.Address,
			Name:            raw.Summary.Name,
			Symbol:          raw.Summary.Symbol,
			TotalSupply:     raw.Summary.TotalSupply,
			TopHolders:      holders,
		},
		User: PointsUser{CurrentBalance: raw.Balance},
	}
}

// IsActive reports whether a question accepts votes at time now.
func IsActive(kickoff, deadline, now plasa.Timestamp, vetoed bool) bool {
	return !vetoed && kickoff <= now && now < deadline
}

func ComposeQuestionPreview(raw RawQuestion) (QuestionPreview, error) {
	if raw.Kickoff > raw.Deadline {
		return QuestionPreview{}, plasa.Malformed("question", raw.Address, facts.FieldKickoff, "kickoff %d after deadline %d", raw.Kickoff, raw.Deadline)
	}
	if raw.Tally.TotalCount != raw.VoteCount {
		return QuestionPreview{}, plasa.Malformed("question", raw.Address, facts.FieldVoteCount, "declares %d votes, tally has %d", raw.VoteCount, raw.Tally.TotalCount)
	}
	now := raw.Anchor.Time
	active := IsActive(raw.Kickoff, raw.Deadline, now, raw.Vetoed)
	tags := make([]string, len(raw.Tags))
	copy(tags, raw.Tags)
	if len(tags) == 0 {
		tags = Keywords(raw.Title, raw.Description)
	}
	p := QuestionPreview{
		Data: QuestionData{
			ContractAddress: raw.Address,
			QuestionType:    raw.Type,
			Title:           raw.Title,
			Description:     raw.Description,
			Tags:            tags,
			Creator:         raw.Creator,
			Kickoff:         raw.Kickoff,
			Deadline:        raw.Deadline,
			IsActive:        active,
			Vetoed:          raw.Vetoed,
			VoteCount:       raw.VoteCount,
		},
		User: QuestionUser{
			CanVote: active && raw.Points.Balance > 0,
		},
		Points: ComposePoints(raw.Points),
	}
	if raw.Frozen != nil && now >= raw.Deadline {
		frozen := *raw.Frozen
		p.User.PointsAtDeadline = &frozen
	}
	voted := false
	if raw.Viewer.Account != "" {
		_, voted = raw.Tally.VoteOf(raw.Viewer.Account)
	}
	switch raw.Type {
	case plasa.QuestionOpen:
		vetoed := 0
		for _, o := range raw.Options {
			if o.Vetoed {
				vetoed++
			}
		}
		p.Data.Specific.Open = &OpenQuestionData{OptionCount: len(raw.Options), VetoedOptionCount: vetoed}
		p.User.Specific.Open = &OpenQuestionUser{
			Voted:        voted,
			CanAddOption: active && raw.Permissions.Has(permissions.AddOpenQuestionOption),
		}
	case plasa.QuestionFixed:
		for _, o := range raw.Options {
			if o.Vetoed {
				return QuestionPreview{}, plasa.Malformed("option", o.Address, facts.FieldVetoed, "options of fixed question %s cannot be vetoed", raw.Address)
			}
		}
		p.Data.Specific.Fixed = &FixedQuestionData{OptionCount: len(raw.Options)}
		p.User.Specific.Fixed = &FixedQuestionUser{Voted: voted}
	default:
		return QuestionPreview{}, plasa.Malformed("question", raw.Address, facts.FieldType, "unsupported question type %s", raw.Type)
	}
	return p, nil
}

func ComposeQuestion(raw RawQuestion) (QuestionView, error) {
	p, err := ComposeQuestionPreview(raw)
	if err != nil {
		return QuestionView{}, err
	}
	if len(raw.Tally.PerOption) != len(raw.Options) {
		return QuestionView{}, plasa.Malformed("question", raw.Address, facts.FieldOptions, "%d options, tally covers %d", len(raw.Options), len(raw.Tally.PerOption))
	}
	var mine plasa.Address
	if raw.Viewer.Account != "" {
		mine, _ = raw.Tally.VoteOf(raw.Viewer.Account)
	}
	var weight int64
	for _, t := range raw.Tally.PerOption {
		weight += t.LiveWeight
	}
	v := QuestionView{QuestionPreview: p, Options: make([]OptionView, 0, len(raw.Options))}
	for _, o := range raw.Options {
		t, ok := raw.Tally.PerOption[o.Address]
		if !ok {
			return QuestionView{}, plasa.Malformed("option", o.Address, facts.FieldVoters, "not tallied for question %s", raw.Address)
		}
		ov := OptionView{
			Data: OptionData{
				ContractAddress: o.Address,
				Title:           o.Title,
				Description:     o.Description,
				Proposer:        o.Proposer,
				Vetoed:          o.Vetoed,
				VoteCount:       t.Count,
				PointsCurrent:   t.LiveWeight,
				Share:           plasa.Permille(t.LiveWeight, weight),
			},
			User: OptionUser{Voted: mine != "" && mine == o.Address},
		}
		if t.FrozenWeight != nil {
			w := *t.FrozenWeight
			ov.Data.PointsAtDeadline = &w
		}
		v.Options = append(v.Options, ov)
	}
	return v, nil
}

func ComposeStamp(raw RawStamp) (StampView, error) {
	v := StampView{
		Data: StampData{
			ContractAddress: raw.Address,
			StampType:       raw.Type,
			Name:            raw.Name,
			Symbol:          raw.Symbol,
			Platform:        raw.Platform,
			TotalSupply:     raw.TotalSupply,
		},
	}
	owns := raw.StampID != ""
	if owns {
		if raw.Owner != raw.Viewer.Account {
			return StampView{}, plasa.Malformed("stamp", raw.Address, facts.FieldOwnerOf+"("+raw.StampID+")", "token %s belongs to %s, not %s", raw.StampID, raw.Owner, raw.Viewer.Account)
		}
		if raw.MintedAt > raw.Anchor.Time {
			return StampView{}, plasa.Malformed("stamp", raw.Address, facts.FieldMintedAt+"("+raw.StampID+")", "minted at %d, after %s", raw.MintedAt, raw.Anchor)
		}
		minted := raw.MintedAt
		v.User = StampUser{Owns: true, StampID: raw.StampID, MintingTimestamp: &minted}
	}
	switch raw.Type {
	case plasa.StampAccountOwnership:
		v.Data.Specific.AccountOwnership = &AccountOwnershipData{}
		if owns {
			v.User.Specific.AccountOwnership = &AccountOwnershipUser{Username: raw.Username}
		}
	case plasa.StampFollowerSince:
		v.Data.Specific.FollowerSince = &FollowerSinceData{FollowedAccount: raw.FollowedAccount, Space: raw.Space}
		if owns {
			if raw.FollowedAt > raw.Anchor.Time {
				return StampView{}, plasa.Malformed("stamp", raw.Address, facts.FieldFollowedAt+"("+raw.StampID+")", "follow at %d, after %s", raw.FollowedAt, raw.Anchor)
			}
			v.User.Specific.FollowerSince = &FollowerSinceUser{
				FollowTimestamp: raw.FollowedAt,
				TimeSinceFollow: raw.Anchor.Time - raw.FollowedAt,
			}
		}
	default:
		return StampView{}, plasa.Malformed("stamp", raw.Address, facts.FieldType, "unsupported stamp type %s", raw.Type)
	}
	return v, nil
}

func ComposePointsStamp(raw RawStamp) (PointsStampView, error) {
	if raw.Type != plasa.StampFollowerSince {
		return PointsStampView{}, plasa.Malformed("stamp", raw.Address, facts.FieldType, "%s stamps cannot feed points", raw.Type)
	}
	if raw.Multiplier == nil {
		return PointsStampView{}, plasa.Malformed("stamp", raw.Address, facts.FieldMultiplier, "points stamp without a multiplier")
	}
	s, err := ComposeStamp(raw)
	if err != nil {
		return PointsStampView{}, err
	}
	return PointsStampView{Data: PointsStampData{StampData: s.Data, Multiplier: *raw.Multiplier}, User: s.User}, nil
}
