// Package snapshot pins one anchor per composition and makes sure that every fact
// going into a view was read as of that anchor.
//
// A composition runs as an attempt: the latest anchor is pinned, the root
// entity's sequence (the canary) is read at the pinned anchor, the composition
// runs with a Reader that refuses facts served at any other anchor, and the
// canary is read again at latest. If the canary moved, a fact came back skewed,
// or the source could not honor the anchor, the whole read set is dropped and the
// attempt is repeated with a fresh anchor. After MaxAttempts the request fails
// with SnapshotUnavailable.
package snapshot

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"plasa/consensus/anchors"
	"plasa/facts"
	"plasa/plasa"
)

type Options struct {
	MaxAttempts    int
	ReadTimeout    time.Duration
	AttemptTimeout time.Duration
	FanOut         int
}

func OptionsFromConfig(c plasa.Config) Options {
	return Options{
		MaxAttempts:    c.MaxAttempts,
		ReadTimeout:    c.ReadTimeout,
		AttemptTimeout: c.AttemptTimeout,
		FanOut:         c.FanOut,
	}
}

// Func composes something from facts read through r. It must not keep r or any
// fact after it returns, since a failed attempt is thrown away.
type Func func(ctx context.Context, r facts.Reader) error

type Coordinator struct {
	src     facts.Source
	anchors *anchors.Cache
	opts    Options
	stats   *recorder
}

func New(src facts.Source, cache *anchors.Cache, opts Options) *Coordinator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.FanOut < 1 {
		opts.FanOut = 1
	}
	if cache == nil {
		cache = anchors.New()
	}
	return &Coordinator{src: src, anchors: cache, opts: opts, stats: newRecorder()}
}

func (c *Coordinator) Anchors() *anchors.Cache {
	return c.anchors
}

func (c *Coordinator) Stats() Stats {
	return c.stats.snapshot()
}

// Latest asks the source for its latest anchor and records it.
func (c *Coordinator) Latest(ctx context.Context) (plasa.Anchor, error) {
	a, err := c.src.LatestAnchor(ctx)
	if err != nil {
		return a, err
	}
	c.anchors.Observe(a)
	return a, nil
}

// ResolveAnchor returns the latest anchor at or before t.
func (c *Coordinator) ResolveAnchor(ctx context.Context, t plasa.Timestamp) (plasa.Anchor, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return latest, err
	}
	if t >= latest.Time {
		return latest, nil
	}
	r := c.reader(latest)
	return r.AnchorAt(ctx, t)
}

func (c *Coordinator) reader(a plasa.Anchor) *reader {
	return &reader{src: c.src, anchors: c.anchors, anchor: a, readTimeout: c.opts.ReadTimeout}
}

// Run composes fn at the latest anchor, retrying with fresh anchors until the
// read set is consistent.
func (c *Coordinator) Run(ctx context.Context, canary facts.Query, fn Func) error {
	id := uuid.New().String()
	start := time.Now()
	var pinned plasa.Anchor
	var last error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		var err error
		pinned, err = c.attempt(ctx, canary, fn)
		if err == nil {
			c.stats.record(attempt, time.Since(start), nil)
			if attempt > 1 {
				plasa.LogCLI(fmt.Sprintf("[%s] %s composed at %s after %d attempts", id, canary.Kind, pinned, attempt), 3)
			}
			return nil
		}
		if !retryable(err) {
			err = finalError(ctx, pinned, err)
			c.stats.record(attempt, time.Since(start), err)
			if plasa.KindOf(err) == plasa.KindMalformedFact {
				plasa.LogCLI(fmt.Sprintf("[%s] %s", id, err), 2)
			}
			return err
		}
		last = err
		plasa.LogCLI(fmt.Sprintf("[%s] attempt %d/%d at %s for %s discarded: %s", id, attempt, c.opts.MaxAttempts, pinned, canary, err), 3)
	}
	err := plasa.SnapshotUnavailable(pinned, c.opts.MaxAttempts, last)
	c.stats.unavailable()
	c.stats.record(c.opts.MaxAttempts, time.Since(start), err)
	plasa.LogCLI(fmt.Sprintf("[%s] %s", id, err), 2)
	return err
}

func (c *Coordinator) attempt(ctx context.Context, canary facts.Query, fn Func) (plasa.Anchor, error) {
	actx, cancel := c.withAttemptTimeout(ctx)
	defer cancel()
	pinned, err := c.Latest(actx)
	if err != nil {
		return pinned, err
	}
	r := c.reader(pinned)
	before, err := r.Read(actx, canary)
	if err != nil {
		return pinned, err
	}
	if err := fn(actx, r); err != nil {
		return pinned, err
	}
	after, err := c.src.Read(actx, canary, nil)
	if err != nil {
		return pinned, r.classify(err, string(canary.Kind), canary.ID, canary.Field, pinned)
	}
	if !reflect.DeepEqual(before.Value, after.Value) {
		return pinned, errors.Wrapf(errCanaryMoved, "%s went from %v to %v (now at %s)", canary, before.Value, after.Value, after.Anchor)
	}
	return pinned, nil
}

// RunAt composes fn at an explicit historical anchor. There is nothing to retry
// against, so any inconsistency is reported as SnapshotUnavailable right away.
func (c *Coordinator) RunAt(ctx context.Context, at plasa.Anchor, fn Func) error {
	start := time.Now()
	actx, cancel := c.withAttemptTimeout(ctx)
	defer cancel()
	err := fn(actx, c.reader(at))
	if err != nil {
		if retryable(err) {
			err = plasa.SnapshotUnavailable(at, 1, err)
			c.stats.unavailable()
		} else {
			err = finalError(ctx, at, err)
		}
	}
	c.stats.record(1, time.Since(start), err)
	return err
}

func (c *Coordinator) withAttemptTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.AttemptTimeout)
}

// FanOut runs tasks concurrently, at most Options.FanOut at a time. The first
// error cancels the rest.
func (c *Coordinator) FanOut(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	return FanOut(ctx, c.opts.FanOut, tasks...)
}

func FanOut(ctx context.Context, limit int, tasks ...func(ctx context.Context) error) error {
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, limit)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			return task(gctx)
		})
	}
	return g.Wait()
}

func retryable(err error) bool {
	return errors.Is(err, facts.ErrAnchorUnavailable) || errors.Is(err, errSkew) || errors.Is(err, errCanaryMoved)
}

func finalError(ctx context.Context, at plasa.Anchor, err error) error {
	if plasa.KindOf(err) != plasa.KindUnknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return plasa.Timeout(at, err)
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

// Compose runs fn through c.Run and returns its result. The zero value is
// returned with any error.
func Compose[T any](ctx context.Context, c *Coordinator, canary facts.Query, fn func(ctx context.Context, r facts.Reader) (T, error)) (T, error) {
	var out T
	err := c.Run(ctx, canary, func(ctx context.Context, r facts.Reader) error {
		v, err := fn(ctx, r)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func ComposeAt[T any](ctx context.Context, c *Coordinator, at plasa.Anchor, fn func(ctx context.Context, r facts.Reader) (T, error)) (T, error) {
	var out T
	err := c.RunAt(ctx, at, func(ctx context.Context, r facts.Reader) error {
		v, err := fn(ctx, r)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
