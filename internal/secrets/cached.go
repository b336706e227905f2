package secrets

import (
	"context"
	"time"

	"github.com/authcore-io/authcore/internal/cache"
)

const cacheKey = "provider_secrets"

// Cached decorates a Source with a TTL cache so repeated fetches within the
// window cost nothing. A failed fetch is returned as-is and never cached.
type Cached struct {
	source Source
	cache  *cache.Cache[ProviderSecrets]
}

// NewCached wraps source with a cache of the given capacity and ttl.
func NewCached(source Source, capacity int, ttl time.Duration) *Cached {
	return &Cached{source: source, cache: cache.New[ProviderSecrets](capacity, ttl)}
}

// Fetch returns the cached bundle when fresh, otherwise delegates.
func (c *Cached) Fetch(ctx context.Context) (ProviderSecrets, error) {
	if s, ok := c.cache.Get(cacheKey); ok {
		return s, nil
	}
	s, err := c.source.Fetch(ctx)
	if err != nil {
		return ProviderSecrets{}, err
	}
	c.cache.Set(cacheKey, s)
	return s, nil
}

// Invalidate drops the cached bundle, forcing the next Fetch to the backend.
func (c *Cached) Invalidate() {
	c.cache.InvalidateAll()
}
