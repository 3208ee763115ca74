// Package conductor is the boundary other layers call to get views. It pins an
// anchor through the snapshot coordinator, loads the raw facts, runs the
// engines and hands the result to the composer.
package conductor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"plasa/consensus/anchors"
	"plasa/consensus/points"
	"plasa/consensus/snapshot"
	"plasa/consensus/tally"
	"plasa/facts"
	"plasa/plasa"
	"plasa/views"
)

type Conductor struct {
	registry plasa.Address
	coord    *snapshot.Coordinator
	points   *points.Engine
	counter  *tally.Counter

	mutex       *deadlock.Mutex
	subscribers map[int]chan plasa.Anchor
	nextSub     int
}

func New(src facts.Source, config plasa.Config) *Conductor {
	cache := anchors.New()
	opts := snapshot.OptionsFromConfig(config)
	pe := points.New(cache, config.TopHolders, opts.FanOut)
	return &Conductor{
		registry:    config.Registry,
		coord:       snapshot.New(src, cache, opts),
		points:      pe,
		counter:     tally.New(pe, opts.FanOut),
		mutex:       &deadlock.Mutex{},
		subscribers: make(map[int]chan plasa.Anchor),
	}
}

func (c *Conductor) Coordinator() *snapshot.Coordinator {
	return c.coord
}

func (c *Conductor) Registry() plasa.Address {
	return c.registry
}

func (c *Conductor) GetPlasaView(ctx context.Context, viewer plasa.Viewer) (views.PlasaView, error) {
	return run[views.PlasaView](ctx, c, nil, views.KindPlasa, c.registry, viewer)
}

func (c *Conductor) GetPlasaViewAt(ctx context.Context, at plasa.Anchor, viewer plasa.Viewer) (views.PlasaView, error) {
	return run[views.PlasaView](ctx, c, &at, views.KindPlasa, c.registry, viewer)
}

func (c *Conductor) GetSpaceView(ctx context.Context, id plasa.Address, viewer plasa.Viewer) (views.SpaceView, error) {
	return run[views.SpaceView](ctx, c, nil, views.KindSpace, id, viewer)
}

func (c *Conductor) GetSpaceViewAt(ctx context.Context, at plasa.Anchor, id plasa.Address, viewer plasa.Viewer) (views.SpaceView, error) {
	return run[views.SpaceView](ctx, c, &at, views.KindSpace, id, viewer)
}

func (c *Conductor) GetQuestionView(ctx context.Context, id plasa.Address, viewer plasa.Viewer) (views.QuestionView, error) {
	return run[views.QuestionView](ctx, c, nil, views.KindQuestion, id, viewer)
}

func (c *Conductor) GetQuestionViewAt(ctx context.Context, at plasa.Anchor, id plasa.Address, viewer plasa.Viewer) (views.QuestionView, error) {
	return run[views.QuestionView](ctx, c, &at, views.KindQuestion, id, viewer)
}

func (c *Conductor) GetStampView(ctx context.Context, id plasa.Address, viewer plasa.Viewer) (views.StampView, error) {
	return run[views.StampView](ctx, c, nil, views.KindStamp, id, viewer)
}

func (c *Conductor) GetStampViewAt(ctx context.Context, at plasa.Anchor, id plasa.Address, viewer plasa.Viewer) (views.StampView, error) {
	return run[views.StampView](ctx, c, &at, views.KindStamp, id, viewer)
}

func run[T any](ctx context.Context, c *Conductor, at *plasa.Anchor, kind views.Kind, id plasa.Address, viewer plasa.Viewer) (T, error) {
	var zero T
	v, err := c.View(ctx, kind, id, viewer, at)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("%s view composed as %T", kind, v)
	}
	return out, nil
}

// View composes a view of any kind the boundary exposes. A nil anchor means
// latest, with canary retries; otherwise the view is composed as of at.
func (c *Conductor) View(ctx context.Context, kind views.Kind, id plasa.Address, viewer plasa.Viewer, at *plasa.Anchor) (interface{}, error) {
	var canary facts.Query
	var load func(ctx context.Context, r facts.Reader) (interface{}, error)
	switch kind {
	case views.KindPlasa:
		canary = facts.Sequence(facts.KindPlasa, c.registry)
		load = func(ctx context.Context, r facts.Reader) (interface{}, error) {
			return c.loadPlasa(ctx, r, viewer)
		}
	case views.KindSpace:
		canary = facts.Sequence(facts.KindSpace, id)
		load = func(ctx context.Context, r facts.Reader) (interface{}, error) {
			return c.loadSpace(ctx, r, id, viewer)
		}
	case views.KindQuestion:
		canary = facts.Sequence(facts.KindQuestion, id)
		load = func(ctx context.Context, r facts.Reader) (interface{}, error) {
			return c.loadQuestion(ctx, r, id, viewer, nil)
		}
	case views.KindStamp:
		canary = facts.Sequence(facts.KindStamp, id)
		load = func(ctx context.Context, r facts.Reader) (interface{}, error) {
			return c.loadStamp(ctx, r, id, viewer)
		}
	default:
		return nil, errors.Errorf("%s views are not served", kind)
	}
	compose := func(ctx context.Context, r facts.Reader) (interface{}, error) {
		raw, err := load(ctx, r)
		if err != nil {
			return nil, err
		}
		return views.Compose(kind, raw)
	}
	if at != nil {
		return snapshot.ComposeAt(ctx, c.coord, *at, compose)
	}
	return snapshot.Compose(ctx, c.coord, canary, compose)
}

// Subscribe returns a channel that receives the latest anchor each time it
// advances, while Start is running. Slow receivers only see the newest anchor.
func (c *Conductor) Subscribe() (<-chan plasa.Anchor, func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan plasa.Anchor, 1)
	c.subscribers[id] = ch
	return ch, func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Conductor) publish(a plasa.Anchor) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- a
	}
}

// Start watches the source for new anchors until terminate is closed.
func (c *Conductor) Start(terminate chan struct{}, wg *sync.WaitGroup, every time.Duration) {
	plasa.LogCLI("Starting the Conductor", 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		var last plasa.Anchor
		for {
			ctx, cancel := context.WithTimeout(context.Background(), every)
			a, err := c.coord.Latest(ctx)
			cancel()
			if err != nil {
				plasa.LogCLI(fmt.Sprintf("Conductor: could not get the latest anchor: %s", err), 2)
			} else if a.After(last) {
				last = a
				c.publish(a)
			}
			select {
			case <-terminate:
				plasa.LogCLI("Conductor: shutdown complete", 4)
				return
			case <-ticker.C:
			}
		}
	}()
}
