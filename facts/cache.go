package facts

import (
	"context"

	lru "github.com/hashicorp/golang-lru"

	"plasa/plasa"
)

type cacheKey struct {
	q  Query
	at plasa.Anchor
}

// Cache remembers facts read at explicit anchors. A fact at an existing anchor
// never changes, so entries are never invalidated, only evicted. Reads at latest
// always go to the underlying source.
type Cache struct {
	Source
	facts *lru.Cache
}

func NewCache(src Source, size int) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{Source: src, facts: c}, nil
}

func (c *Cache) Read(ctx context.Context, q Query, at *plasa.Anchor) (Fact, error) {
	if at == nil {
		return c.Source.Read(ctx, q, nil)
	}
	key := cacheKey{q: q, at: *at}
	if v, ok := c.facts.Get(key); ok {
		return v.(Fact), nil
	}
	f, err := c.Source.Read(ctx, q, at)
	if err != nil {
		return f, err
	}
	// skewed facts are passed through so the caller can see them, but never kept
	if f.Anchor == *at {
		c.facts.Add(key, f)
	}
	return f, nil
}

func (c *Cache) Len() int {
	return c.facts.Len()
}
