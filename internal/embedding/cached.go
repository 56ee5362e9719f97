package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes EmbedQuery results so repeated questions skip the provider.
// Document embedding is passed through untouched.
type Cached struct {
	Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with an LRU of the given size. A non-positive size returns inner as is.
func NewCached(inner Embedder, size int) (Embedder, error) {
	if size <= 0 {
		return inner, nil
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &Cached{Embedder: inner, cache: cache}, nil
}

// EmbedQuery returns the cached vector for text, embedding it on a miss.
// Failed lookups are not cached.
func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

// Len reports the number of cached queries.
func (c *Cached) Len() int { return c.cache.Len() }
