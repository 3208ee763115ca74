// Package points resolves point balances: live at the pinned anchor, historical
// at a timestamp, and frozen at a question's deadline.
package points

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"plasa/consensus/anchors"
	"plasa/consensus/snapshot"
	"plasa/facts"
	"plasa/plasa"
)

var ErrFuture = errors.New("timestamp is after the pinned anchor")

type Engine struct {
	anchors *anchors.Cache
	topN    int
	fanOut  int
}

func New(cache *anchors.Cache, topN, fanOut int) *Engine {
	if topN < 1 {
		topN = 10
	}
	return &Engine{anchors: cache, topN: topN, fanOut: fanOut}
}

func balanceQuery(points plasa.Address, account plasa.Account) facts.Query {
	return facts.Query{Kind: facts.KindPoints, ID: points, Field: facts.FieldBalanceOf, Arg: account}
}

func decodeBalance(f facts.Fact, err error) (int64, error) {
	if errors.Is(err, plasa.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return facts.NonNegative(f)
}

// Balance is the live balance at r's anchor. An account with no balance fact
// holds zero.
func (e *Engine) Balance(ctx context.Context, r facts.Reader, points plasa.Address, account plasa.Account) (int64, error) {
	return decodeBalance(r.Read(ctx, balanceQuery(points, account)))
}

// BalanceAt is the balance as of the latest anchor at or before t, which may not
// be after r's anchor. A balance already frozen for t is returned as frozen.
func (e *Engine) BalanceAt(ctx context.Context, r facts.Reader, points plasa.Address, account plasa.Account, t plasa.Timestamp) (int64, error) {
	if t > r.Anchor().Time {
		return 0, errors.Wrapf(ErrFuture, "%d > %s", t, r.Anchor())
	}
	if v, ok := e.anchors.Frozen(anchors.FrozenKey{Points: points, Account: account, Deadline: t}); ok {
		return v, nil
	}
	at, err := r.AnchorAt(ctx, t)
	if errors.Is(err, plasa.ErrNotFound) {
		// nothing existed yet
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeBalance(r.ReadAt(ctx, balanceQuery(points, account), at))
}

// Freeze snapshots the balance at deadline once r's anchor has reached it. It
// reports false while the deadline is still ahead. The value is only stored once
// r's anchor is past the deadline: another block may still land at the deadline
// itself. The first stored value is the one kept.
func (e *Engine) Freeze(ctx context.Context, r facts.Reader, points plasa.Address, account plasa.Account, deadline plasa.Timestamp) (int64, bool, error) {
	if r.Anchor().Time < deadline {
		return 0, false, nil
	}
	v, err := e.BalanceAt(ctx, r, points, account, deadline)
	if err != nil {
		return 0, false, err
	}
	if r.Anchor().Time == deadline {
		return v, true, nil
	}
	return e.anchors.Freeze(anchors.FrozenKey{Points: points, Account: account, Deadline: deadline}, v), true, nil
}

type Holder struct {
	Account plasa.Account `json:"user"`
	Balance int64         `json:"balance"`
}

type Summary struct {
	Address     plasa.Address `json:"contractAddress"`
	Name        string        `json:"name"`
	Symbol      string        `json:"symbol"`
	TotalSupply int64         `json:"totalSupply"`
	TopHolders  []Holder      `json:"top10Holders"`
}

func (e *Engine) Summary(ctx context.Context, r facts.Reader, points plasa.Address) (Summary, error) {
	s := Summary{Address: points}
	q := func(field string) facts.Query {
		return facts.Query{Kind: facts.KindPoints, ID: points, Field: field}
	}
	f, err := r.Read(ctx, q(facts.FieldName))
	if err != nil {
		return s, err
	}
	if s.Name, err = facts.String(f); err != nil {
		return s, err
	}
	if f, err = r.Read(ctx, q(facts.FieldSymbol)); err != nil {
		return s, err
	}
	if s.Symbol, err = facts.String(f); err != nil {
		return s, err
	}
	if f, err = r.Read(ctx, q(facts.FieldTotalSupply)); err != nil {
		return s, err
	}
	if s.TotalSupply, err = facts.NonNegative(f); err != nil {
		return s, err
	}
	var accounts []string
	f, err = r.Read(ctx, q(facts.FieldHolders))
	switch {
	case err == nil:
		if accounts, err = facts.Strings(f); err != nil {
			return s, err
		}
	case !errors.Is(err, plasa.ErrNotFound):
		return s, err
	}
	s.TopHolders, err = e.topHolders(ctx, r, points, accounts, s.TotalSupply)
	return s, err
}

func (e *Engine) topHolders(ctx context.Context, r facts.Reader, points plasa.Address, accounts []string, supply int64) ([]Holder, error) {
	accounts = dedupe(accounts)
	balances := make([]int64, len(accounts))
	tasks := make([]func(context.Context) error, len(accounts))
	for i, account := range accounts {
		i, account := i, account
		tasks[i] = func(ctx context.Context) error {
			b, err := e.Balance(ctx, r, points, account)
			balances[i] = b
			return err
		}
	}
	if err := snapshot.FanOut(ctx, e.fanOut, tasks...); err != nil {
		return nil, err
	}
	var sum int64
	holders := make([]Holder, 0, len(accounts))
	for i, account := range accounts {
		sum += balances[i]
		if balances[i] > 0 {
			holders = append(holders, Holder{Account: account, Balance: balances[i]})
		}
	}
	if sum > supply {
		// supply bookkeeping belongs to the ledger, so this is only reported
		plasa.LogCLI(fmt.Sprintf("points %s: holder balances sum to %d, over total supply %d at %s", points, sum, supply, r.Anchor()), 2)
	}
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Balance != holders[j].Balance {
			return holders[i].Balance > holders[j].Balance
		}
		return holders[i].Account < holders[j].Account
	})
	if len(holders) > e.topN {
		holders = holders[:e.topN]
	}
	return holders, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
