package facts

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"plasa/plasa"
)

type version struct {
	height int64
	value  interface{}
	del    bool
}

type fieldKey struct {
	kind  Kind
	field string
}

// Ledger is an in-memory, append-only block history that serves facts as of any
// retained anchor. It stands in for the real chain in the daemon, the diff tool
// and the tests.
type Ledger struct {
	mutex   *deadlock.RWMutex
	blocks  []plasa.Anchor
	history map[Query][]version

	// retention is the number of most recent blocks that can be read
	// historically. Zero keeps everything.
	retention int64
	// latestOnly fields ignore the requested anchor and are always served as of
	// the latest block, reporting the latest anchor.
	latestOnly map[fieldKey]bool
	onRead     func(q Query, at *plasa.Anchor)
}

func NewLedger() *Ledger {
	return &Ledger{
		mutex:      &deadlock.RWMutex{},
		history:    make(map[Query][]version),
		latestOnly: make(map[fieldKey]bool),
	}
}

func (l *Ledger) SetRetention(blocks int64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.retention = blocks
}

func (l *Ledger) SetLatestOnly(kind Kind, field string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.latestOnly[fieldKey{kind, field}] = true
}

// OnRead installs a hook that runs before every Read, outside the ledger lock, so
// the hook may Commit.
func (l *Ledger) OnRead(hook func(q Query, at *plasa.Anchor)) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.onRead = hook
}

// Write is a single fact mutation inside a block. A Delete write removes the fact.
type Write struct {
	Query  Query
	Value  interface{}
	Delete bool
}

// Commit appends a block at time t holding the given writes and returns its
// anchor. Every entity written to has its sequence bumped unless the block sets
// the sequence itself.
func (l *Ledger) Commit(t plasa.Timestamp, writes ...Write) (plasa.Anchor, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var last plasa.Anchor
	if len(l.blocks) > 0 {
		last = l.blocks[len(l.blocks)-1]
		if t < last.Time {
			return plasa.Anchor{}, errors.Errorf("block time %d is before the latest block %s", t, last)
		}
	}
	a := plasa.Anchor{Height: last.Height + 1, Time: t}
	touched := make(map[Query]bool)
	explicit := make(map[Query]bool)
	for _, w := range writes {
		if !w.Query.Kind.Valid() {
			return plasa.Anchor{}, errors.Errorf("unknown fact kind %q", w.Query.Kind)
		}
		seq := Sequence(w.Query.Kind, w.Query.ID)
		if w.Query == seq {
			explicit[seq] = true
		}
		touched[seq] = true
	}
	for _, w := range writes {
		l.history[w.Query] = append(l.history[w.Query], version{height: a.Height, value: w.Value, del: w.Delete})
	}
	for seq := range touched {
		if explicit[seq] {
			continue
		}
		var n int64
		if vs := l.history[seq]; len(vs) > 0 {
			if current, ok := vs[len(vs)-1].value.(int64); ok {
				n = current
			} else if f, ok := vs[len(vs)-1].value.(float64); ok {
				n = int64(f)
			}
		}
		l.history[seq] = append(l.history[seq], version{height: a.Height, value: n + 1})
	}
	l.blocks = append(l.blocks, a)
	return a, nil
}

func (l *Ledger) latest() (plasa.Anchor, bool) {
	if len(l.blocks) == 0 {
		return plasa.Anchor{}, false
	}
	return l.blocks[len(l.blocks)-1], true
}

func (l *Ledger) LatestAnchor(ctx context.Context) (plasa.Anchor, error) {
	if err := ctx.Err(); err != nil {
		return plasa.Anchor{}, err
	}
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	a, ok := l.latest()
	if !ok {
		return plasa.Anchor{}, ErrAnchorUnavailable
	}
	return a, nil
}

func (l *Ledger) AnchorAt(ctx context.Context, t plasa.Timestamp) (plasa.Anchor, error) {
	if err := ctx.Err(); err != nil {
		return plasa.Anchor{}, err
	}
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	i := sort.Search(len(l.blocks), func(i int) bool { return l.blocks[i].Time > t })
	if i == 0 {
		return plasa.Anchor{}, errors.Wrapf(ErrNotFound, "no block at or before %d", t)
	}
	a := l.blocks[i-1]
	if !l.retained(a) {
		return plasa.Anchor{}, errors.Wrapf(ErrAnchorUnavailable, "%s is outside the retention window", a)
	}
	return a, nil
}

func (l *Ledger) retained(a plasa.Anchor) bool {
	latest, ok := l.latest()
	if !ok || a.Height > latest.Height || a.Height < 1 {
		return false
	}
	return l.retention == 0 || latest.Height-a.Height < l.retention
}

func (l *Ledger) Read(ctx context.Context, q Query, at *plasa.Anchor) (Fact, error) {
	if err := ctx.Err(); err != nil {
		return Fact{}, err
	}
	l.mutex.RLock()
	hook := l.onRead
	l.mutex.RUnlock()
	if hook != nil {
		hook(q, at)
	}
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	latest, ok := l.latest()
	if !ok {
		return Fact{}, ErrAnchorUnavailable
	}
	served := latest
	if at != nil && !l.latestOnly[fieldKey{q.Kind, q.Field}] {
		if !l.retained(*at) || l.blocks[at.Height-1] != *at {
			return Fact{}, errors.Wrapf(ErrAnchorUnavailable, "%s for %s", *at, q)
		}
		served = *at
	}
	vs := l.history[q]
	i := sort.Search(len(vs), func(i int) bool { return vs[i].height > served.Height })
	if i == 0 || vs[i-1].del {
		return Fact{}, errors.Wrapf(ErrNotFound, "%s at %s", q, served)
	}
	return Fact{Query: q, Value: vs[i-1].value, Anchor: served}, nil
}
