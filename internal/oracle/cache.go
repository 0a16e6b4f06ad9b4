package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a generator with an LRU response cache. Lanes across rounds
// and jobs frequently build identical prompts; replaying the cached
// response costs nothing and keeps oracle spend bounded.
type Cached struct {
	inner Generator
	cache *lru.Cache[string, string]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached builds a caching wrapper with the given capacity.
func NewCached(inner Generator, size int) (*Cached, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Generate returns the cached response when the prompt was seen before.
// Errors are never cached; a failed call stays retryable.
func (c *Cached) Generate(ctx context.Context, prompt string) (string, error) {
	key := promptKey(prompt)
	if resp, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return resp, nil
	}
	resp, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.misses.Add(1)
	c.cache.Add(key, resp)
	return resp, nil
}

// Stats returns hit and miss counts.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
