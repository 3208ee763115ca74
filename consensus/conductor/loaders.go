package conductor

import (
	"context"

	"plasa/consensus/permissions"
	"plasa/consensus/tally"
	"plasa/facts"
	"plasa/plasa"
	"plasa/views"
)

func (c *Conductor) loadPlasa(ctx context.Context, r facts.Reader, viewer plasa.Viewer) (views.RawPlasa, error) {
	raw := views.RawPlasa{Anchor: r.Anchor(), Viewer: viewer, Address: c.registry}
	var spaces, stamps []string
	k, id := facts.KindPlasa, c.registry
	fields := []field{
		need(k, id, facts.FieldChainID, i64(&raw.ChainID)),
		need(k, id, facts.FieldVersion, label(&raw.Version)),
		maybe(k, id, facts.FieldSpaces, list(&spaces)),
		maybe(k, id, facts.FieldStamps, list(&stamps)),
	}
	if viewer.Account != "" {
		fields = append(fields, keyed(maybe(k, id, facts.FieldUsername, str(&raw.Username)), viewer.Account))
	}
	if err := c.fetch(ctx, r, fields...); err != nil {
		return raw, err
	}
	raw.Spaces = make([]views.RawSpace, len(spaces))
	raw.Stamps = make([]views.RawStamp, len(stamps))
	var tasks []func(context.Context) error
	for i, s := range spaces {
		i, s := i, s
		tasks = append(tasks, func(ctx context.Context) (err error) {
			raw.Spaces[i], err = c.loadSpacePreview(ctx, r, s, viewer)
			return
		})
	}
	for i, s := range stamps {
		i, s := i, s
		tasks = append(tasks, func(ctx context.Context) (err error) {
			raw.Stamps[i], err = c.loadStamp(ctx, r, s, viewer)
			return
		})
	}
	return raw, c.coord.FanOut(ctx, tasks...)
}

type spaceRefs struct {
	points    plasa.Address
	questions []string
	stamps    []string
}

func (c *Conductor) loadSpaceHead(ctx context.Context, r facts.Reader, id plasa.Address, viewer plasa.Viewer) (views.RawSpace, spaceRefs, error) {
	raw := views.RawSpace{Anchor: r.Anchor(), Viewer: viewer, Address: id}
	var refs spaceRefs
	k := facts.KindSpace
	var in permissions.Input
	err := c.coord.FanOut(ctx,
		func(ctx context.Context) error {
			return c.fetch(ctx, r,
				need(k, id, facts.FieldName, str(&raw.Name)),
				maybe(k, id, facts.FieldDescription, str(&raw.Description)),
				maybe(k, id, facts.FieldImageURL, str(&raw.ImageURL)),
				need(k, id, facts.FieldCreationTimestamp, i64(&raw.CreationTimestamp)),
				need(k, id, facts.FieldPoints, str(&refs.points)),
				maybe(k, id, facts.FieldQuestions, list(&refs.questions)),
				maybe(k, id, facts.FieldStamps, list(&refs.stamps)),
			)
		},
		func(ctx context.Context) (err error) {
			in, err = permissions.Load(ctx, r, id, viewer.Account)
			return
		},
	)
	if err != nil {
		return raw, refs, err
	}
	if viewer.Account != "" {
		b, err := c.points.Balance(ctx, r, refs.points, viewer.Account)
		if err != nil {
			return raw, refs, err
		}
		in.Holds = b > 0
	}
	raw.Access = permissions.Resolve(in)
	return raw, refs, nil
}

func (c *Conductor) loadSpacePreview(ctx context.Context, r facts.Reader, id plasa.Address, viewer plasa.Viewer) (views.RawSpace, error) {
	raw, _, err := c.loadSpaceHead(ctx, r, id, viewer)
	return raw, err
}

func (c *Conductor) loadSpace(ctx context.Context, r facts.Reader, id plasa.Address, viewer plasa.Viewer) (views.RawSpace, error) {
	raw, refs, err := c.loadSpaceHead(ctx, r, id, viewer)
	if err != nil {
		return raw, err
	}
	raw.Questions = make([]views.RawQuestion, len(refs.questions))
	raw.PointStamps = make([]views.RawStamp, len(refs.stamps))
	tasks := []func(context.Context) error{
		func(ctx context.Context) (err error) {
			raw.Points, err = c.loadPoints(ctx, r, refs.points, viewer)
			return
		},
	}
	for i, q := range refs.questions {
		i, q := i, q
		tasks = append(tasks, func(ctx context.Context) (err error) {
			raw.Questions[i], err = c.loadQuestion(ctx, r, q, viewer, &raw.Access.Permissions)
			return
		})
	}
	for i, s := range refs.stamps {
		i, s := i, s
		tasks = append(tasks, func(ctx context.Context) (err error) {
			raw.PointStamps[i], err = c.loadStamp(ctx, r, s, viewer)
			return
		})
	}
	return raw, c.coord.FanOut(ctx, tasks...)
}

func (c *Conductor) loadPoints(ctx context.Context, r facts.Reader, id plasa.Address, viewer plasa.Viewer) (views.RawPoints, error) {
	var raw views.RawPoints
	s, err := c.points.Summary(ctx, r, id)
	if err != nil {
		return raw, err
	}
	raw.Summary = s
	if viewer.Account != "" {
		raw.Balance, err = c.points.Balance(ctx, r, id, viewer.Account)
	}
	return raw, err
}

// loadQuestion reads a question, its options and their votes. perms are the
// viewer's permissions in the question's space when the caller already has them.
func (c *Conductor) loadQuestion(ctx context.Context, r facts.Reader, id plasa.Address, viewer plasa.Viewer, perms *permissions.Set) (views.RawQuestion, error) {
	raw := views.RawQuestion{Anchor: r.Anchor(), Viewer: viewer, Address: id}
	var qtype string
	var optionIDs []string
	var pointsID plasa.Address
	k := facts.KindQuestion
	err := c.fetch(ctx, r,
		need(k, id, facts.FieldType, label(&qtype)),
		need(k, id, facts.FieldTitle, str(&raw.Title)),
		maybe(k, id, facts.FieldDescription, str(&raw.Description)),
		maybe(k, id, facts.FieldTags, list(&raw.Tags)),
		need(k, id, facts.FieldCreator, str(&raw.Creator)),
		need(k, id, facts.FieldKickoff, i64(&raw.Kickoff)),
		need(k, id, facts.FieldDeadline, i64(&raw.Deadline)),
		maybe(k, id, facts.FieldVetoed, flag(&raw.Vetoed)),
		need(k, id, facts.FieldVoteCount, count(&raw.VoteCount)),
		maybe(k, id, facts.FieldOptions, list(&optionIDs)),
		need(k, id, facts.FieldSpace, str(&raw.Space)),
		need(k, id, facts.FieldPoints, str(&pointsID)),
	)
	if err != nil {
		return raw, err
	}
	raw.Type = plasa.ParseQuestionType(qtype)

	raw.Options = make([]views.RawOption, len(optionIDs))
	in := tally.Input{
		Question:  id,
		Type:      raw.Type,
		Points:    pointsID,
		Deadline:  raw.Deadline,
		VoteCount: raw.VoteCount,
		Options:   make([]tally.Option, len(optionIDs)),
	}
	tasks := []func(context.Context) error{
		func(ctx context.Context) (err error) {
			raw.Points, err = c.loadPoints(ctx, r, pointsID, viewer)
			return
		},
	}
	for i, o := range optionIDs {
		i, o := i, o
		raw.Options[i].Address = o
		in.Options[i].ID = o
		ko := facts.KindOption
		tasks = append(tasks, func(ctx context.Context) error {
			return c.fetch(ctx, r,
				need(ko, o, facts.FieldTitle, str(&raw.Options[i].Title)),
				maybe(ko, o, facts.FieldDescription, str(&raw.Options[i].Description)),
				need(ko, o, facts.FieldProposer, str(&raw.Options[i].Proposer)),
				maybe(ko, o, facts.FieldVetoed, flag(&raw.Options[i].Vetoed)),
				maybe(ko, o, facts.FieldVoters, list(&in.Options[i].Voters)),
				maybe(ko, o, facts.FieldVoteCount, optCount(&in.Options[i].DeclaredCount)),
			)
		})
	}
	if perms != nil {
		raw.Permissions = *perms
	} else {
		tasks = append(tasks, func(ctx context.Context) error {
			access, err := permissions.Load(ctx, r, raw.Space, viewer.Account)
			if err != nil {
				return err
			}
			raw.Permissions = permissions.Resolve(access).Permissions
			return nil
		})
	}
	if viewer.Account != "" {
		tasks = append(tasks, func(ctx context.Context) error {
			v, frozen, err := c.points.Freeze(ctx, r, pointsID, viewer.Account, raw.Deadline)
			if frozen {
				raw.Frozen = &v
			}
			return err
		})
	}
	if err := c.coord.FanOut(ctx, tasks...); err != nil {
		return raw, err
	}
	raw.Tally, err = c.counter.Tally(ctx, r, in)
	return raw, err
}

func (c *Conductor) loadStamp(ctx context.Context, r facts.Reader, id plasa.Address, viewer plasa.Viewer) (views.RawStamp, error) {
	raw := views.RawStamp{Anchor: r.Anchor(), Viewer: viewer, Address: id}
	var stype string
	var multiplier *int64
	k := facts.KindStamp
	fields := []field{
		need(k, id, facts.FieldType, label(&stype)),
		need(k, id, facts.FieldName, str(&raw.Name)),
		need(k, id, facts.FieldSymbol, str(&raw.Symbol)),
		maybe(k, id, facts.FieldPlatform, str(&raw.Platform)),
		need(k, id, facts.FieldTotalSupply, count(&raw.TotalSupply)),
		maybe(k, id, facts.FieldFollowedAccount, str(&raw.FollowedAccount)),
		maybe(k, id, facts.FieldSpace, str(&raw.Space)),
		maybe(k, id, facts.FieldMultiplier, optCount(&multiplier)),
	}
	if viewer.Account != "" {
		fields = append(fields, keyed(maybe(k, id, facts.FieldTokenOf, label(&raw.StampID)), viewer.Account))
	}
	if err := c.fetch(ctx, r, fields...); err != nil {
		return raw, err
	}
	raw.Type = plasa.ParseStampType(stype)
	raw.Multiplier = multiplier
	if raw.StampID == "" {
		return raw, nil
	}
	token := raw.StampID
	fields = []field{
		keyed(need(k, id, facts.FieldOwnerOf, str(&raw.Owner)), token),
		keyed(need(k, id, facts.FieldMintedAt, i64(&raw.MintedAt)), token),
	}
	switch raw.Type {
	case plasa.StampFollowerSince:
		fields = append(fields, keyed(need(k, id, facts.FieldFollowedAt, i64(&raw.FollowedAt)), token))
	case plasa.StampAccountOwnership:
		fields = append(fields, keyed(maybe(k, id, facts.FieldUsername, str(&raw.Username)), token))
	}
	return raw, c.fetch(ctx, r, fields...)
}
