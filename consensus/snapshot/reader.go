package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"plasa/consensus/anchors"
	"plasa/facts"
	"plasa/plasa"
)

var (
	// errSkew: a source served a fact as of an anchor other than the one asked for.
	errSkew = errors.New("fact served at a different anchor")
	// errCanaryMoved: the root entity changed while the composition was running.
	errCanaryMoved = errors.New("canary moved")
)

// reader pins every read of one attempt to a single anchor.
type reader struct {
	src         facts.Source
	anchors     *anchors.Cache
	anchor      plasa.Anchor
	readTimeout time.Duration
}

var _ facts.Reader = (*reader)(nil)

func (r *reader) Anchor() plasa.Anchor {
	return r.anchor
}

func (r *reader) Read(ctx context.Context, q facts.Query) (facts.Fact, error) {
	return r.ReadAt(ctx, q, r.anchor)
}

func (r *reader) ReadAt(ctx context.Context, q facts.Query, at plasa.Anchor) (facts.Fact, error) {
	if at.After(r.anchor) {
		return facts.Fact{}, errors.Errorf("read of %s at %s is past the pinned anchor %s", q, at, r.anchor)
	}
	rctx, cancel := r.withReadTimeout(ctx)
	defer cancel()
	f, err := r.src.Read(rctx, q, &at)
	if err != nil {
		return f, r.classify(err, string(q.Kind), q.ID, fieldName(q), at)
	}
	if f.Anchor != at {
		return f, errors.Wrapf(errSkew, "%s asked at %s, served at %s", q, at, f.Anchor)
	}
	return f, nil
}

func (r *reader) AnchorAt(ctx context.Context, t plasa.Timestamp) (plasa.Anchor, error) {
	if t > r.anchor.Time {
		return plasa.Anchor{}, errors.Errorf("time %d is after the pinned anchor %s", t, r.anchor)
	}
	if a, ok := r.anchors.AnchorAt(t); ok {
		return a, nil
	}
	rctx, cancel := r.withReadTimeout(ctx)
	defer cancel()
	a, err := r.src.AnchorAt(rctx, t)
	if err != nil {
		return a, r.classify(err, "anchor", "", fmt.Sprint(t), r.anchor)
	}
	if a.After(r.anchor) {
		a = r.anchor
	}
	r.anchors.RememberAnchorAt(t, a, r.anchor)
	return a, nil
}

func (r *reader) withReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.readTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.readTimeout)
}

// classify turns a source error into the error kind the caller sees. Anchor
// unavailability is left as is so that the coordinator can retry it.
func (r *reader) classify(err error, entity, id, field string, at plasa.Anchor) error {
	switch {
	case errors.Is(err, facts.ErrNotFound):
		e := plasa.NotFound(entity, id, field, at)
		e.Err = err
		return e
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return plasa.Timeout(at, errors.Wrapf(err, "reading %s %s.%s", entity, id, field))
	}
	return err
}

func fieldName(q facts.Query) string {
	if q.Arg == "" {
		return q.Field
	}
	return q.Field + "(" + q.Arg + ")"
}
