// Package tally counts the votes on a question and weighs them with point
// balances, live and as frozen at the deadline.
package tally

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"plasa/consensus/points"
	"plasa/consensus/snapshot"
	"plasa/facts"
	"plasa/plasa"
)

type Option struct {
	ID     plasa.Address
	Voters []plasa.Account
	// DeclaredCount is the option's own voteCount fact, if it has one.
	DeclaredCount *int64
}

type Input struct {
	Question  plasa.Address
	Type      plasa.QuestionType
	Points    plasa.Address
	Deadline  plasa.Timestamp
	VoteCount int64
	Options   []Option
}

type OptionTally struct {
	Count      int64 `json:"count"`
	LiveWeight int64 `json:"liveWeight"`
	// FrozenWeight is set once the anchor has reached the deadline.
	FrozenWeight *int64 `json:"frozenWeight,omitempty"`
}

type Result struct {
	PerOption  map[plasa.Address]OptionTally `json:"perOption"`
	TotalCount int64                         `json:"totalCount"`
	// Votes maps each counted voter to the option their vote is on.
	Votes map[plasa.Account]plasa.Address `json:"-"`
}

// VoteOf returns the option that account's vote is counted on.
func (r Result) VoteOf(account plasa.Account) (plasa.Address, bool) {
	o, ok := r.Votes[account]
	return o, ok
}

type Counter struct {
	points *points.Engine
	fanOut int
}

func New(engine *points.Engine, fanOut int) *Counter {
	return &Counter{points: engine, fanOut: fanOut}
}

// Tally counts one vote per distinct account. A voter listed twice on one option
// counts once. On a Fixed question a voter on two options is malformed; on an
// Open question the question's voteOf fact says which option the vote was moved
// to. The counts must agree with the declared per-option counts and with the
// question's voteCount.
func (c *Counter) Tally(ctx context.Context, r facts.Reader, in Input) (Result, error) {
	res := Result{
		PerOption: make(map[plasa.Address]OptionTally, len(in.Options)),
		Votes:     make(map[plasa.Account]plasa.Address),
	}
	if in.Type != plasa.QuestionOpen && in.Type != plasa.QuestionFixed {
		return res, plasa.Malformed("question", in.Question, facts.FieldType, "cannot tally a %s question", in.Type)
	}
	on := make(map[plasa.Account][]plasa.Address)
	for _, o := range in.Options {
		if _, dup := res.PerOption[o.ID]; dup {
			return res, plasa.Malformed("question", in.Question, facts.FieldOptions, "option %s listed twice", o.ID)
		}
		res.PerOption[o.ID] = OptionTally{}
		seen := make(map[plasa.Account]bool, len(o.Voters))
		for _, v := range o.Voters {
			if seen[v] {
				continue
			}
			seen[v] = true
			on[v] = append(on[v], o.ID)
		}
	}
	if err := c.assign(ctx, r, in, on, res.Votes); err != nil {
		return res, err
	}

	voters := make([]plasa.Account, 0, len(res.Votes))
	for v := range res.Votes {
		voters = append(voters, v)
	}
	sort.Strings(voters)
	live := make([]int64, len(voters))
	frozen := make([]int64, len(voters))
	final := r.Anchor().Time >= in.Deadline
	tasks := make([]func(context.Context) error, len(voters))
	for i, v := range voters {
		i, v := i, v
		tasks[i] = func(ctx context.Context) error {
			b, err := c.points.Balance(ctx, r, in.Points, v)
			if err != nil {
				return err
			}
			live[i] = b
			if final {
				f, _, err := c.points.Freeze(ctx, r, in.Points, v, in.Deadline)
				if err != nil {
					return err
				}
				frozen[i] = f
			}
			return nil
		}
	}
	if err := snapshot.FanOut(ctx, c.fanOut, tasks...); err != nil {
		return res, err
	}
	frozenSums := make(map[plasa.Address]int64)
	for i, v := range voters {
		o := res.Votes[v]
		t := res.PerOption[o]
		t.Count++
		t.LiveWeight += live[i]
		res.PerOption[o] = t
		frozenSums[o] += frozen[i]
	}
	for _, o := range in.Options {
		t := res.PerOption[o.ID]
		if o.DeclaredCount != nil && *o.DeclaredCount != t.Count {
			return res, plasa.Malformed("option", o.ID, facts.FieldVoteCount, "declares %d votes, %d distinct voters", *o.DeclaredCount, t.Count)
		}
		if final {
			w := frozenSums[o.ID]
			t.FrozenWeight = &w
		}
		res.PerOption[o.ID] = t
		res.TotalCount += t.Count
	}
	if res.TotalCount != in.VoteCount {
		return res, plasa.Malformed("question", in.Question, facts.FieldVoteCount, "declares %d votes, options sum to %d", in.VoteCount, res.TotalCount)
	}
	return res, nil
}

func (c *Counter) assign(ctx context.Context, r facts.Reader, in Input, on map[plasa.Account][]plasa.Address, votes map[plasa.Account]plasa.Address) error {
	accounts := make([]plasa.Account, 0, len(on))
	for v := range on {
		accounts = append(accounts, v)
	}
	sort.Strings(accounts)
	for _, v := range accounts {
		opts := on[v]
		if len(opts) == 1 {
			votes[v] = opts[0]
			continue
		}
		if in.Type == plasa.QuestionFixed {
			return plasa.Malformed("question", in.Question, facts.FieldVoters, "%s voted for %s on a single choice question", v, strings.Join(opts, ", "))
		}
		f, err := r.Read(ctx, facts.Query{Kind: facts.KindQuestion, ID: in.Question, Field: facts.FieldVoteOf, Arg: v})
		if errors.Is(err, plasa.ErrNotFound) {
			return plasa.Malformed("question", in.Question, facts.FieldVoters, "%s is on %s with no current vote", v, strings.Join(opts, ", "))
		}
		if err != nil {
			return err
		}
		current, err := facts.String(f)
		if err != nil {
			return err
		}
		if !plasa.Contains(opts, current) {
			return plasa.Malformed("question", in.Question, facts.FieldVoteOf+"("+v+")", "names %s, but %s is only listed on %s", current, v, strings.Join(opts, ", "))
		}
		votes[v] = current
	}
	return nil
}
