// Package cache provides caching wrappers for API-key principal lookups.
// Both variants negatively cache misses so unknown keys cannot hammer the
// principals table.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/backofficehq/backoffice/internal/models"
	"github.com/backofficehq/backoffice/internal/store"
)

const (
	principalTTL       = 5 * time.Minute
	negativeTTL        = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = 60 * time.Second
)

// ErrCachedNotFound is returned for negative cache hits.
var ErrCachedNotFound = errors.New("principal not found (cached)")

// PrincipalLookup resolves an API key to an actor.
type PrincipalLookup interface {
	GetByAPIKey(ctx context.Context, apiKey string) (models.Actor, error)
}

type cachedActor struct {
	actor     models.Actor
	negative  bool
	fetchedAt time.Time
}

func (c cachedActor) ttl() time.Duration {
	if c.negative {
		return negativeTTL
	}

	return principalTTL
}

// MemoryPrincipalLookup wraps a PrincipalLookup with a bounded in-memory
// cache, keyed by hashed API key so raw keys are never held in memory.
type MemoryPrincipalLookup struct {
	inner PrincipalLookup
	mu    sync.RWMutex
	cache map[string]cachedActor
}

// NewMemoryPrincipalLookup creates a caching wrapper around inner. The
// provided context controls the lifetime of the background eviction
// goroutine.
func NewMemoryPrincipalLookup(ctx context.Context, inner PrincipalLookup) *MemoryPrincipalLookup {
	c := &MemoryPrincipalLookup{
		inner: inner,
		cache: make(map[string]cachedActor),
	}
	go c.evictLoop(ctx)

	return c
}

func (c *MemoryPrincipalLookup) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, v := range c.cache {
				if now.Sub(v.fetchedAt) >= v.ttl() {
					delete(c.cache, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// GetByAPIKey returns a cached actor or delegates to the inner lookup.
func (c *MemoryPrincipalLookup) GetByAPIKey(ctx context.Context, apiKey string) (models.Actor, error) {
	hk := store.HashAPIKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	if ok && time.Since(entry.fetchedAt) < entry.ttl() {
		c.mu.RUnlock()

		if entry.negative {
			return models.Actor{}, ErrCachedNotFound
		}

		return entry.actor, nil
	}
	c.mu.RUnlock()

	actor, err := c.inner.GetByAPIKey(ctx, apiKey)
	if err != nil {
		c.mu.Lock()
		c.cache[hk] = cachedActor{negative: true, fetchedAt: time.Now()}
		c.mu.Unlock()

		return models.Actor{}, err
	}

	c.mu.Lock()
	if len(c.cache) >= maxCacheEntries {
		// Evict expired entries, then trim if still over limit.
		now := time.Now()
		for k, v := range c.cache {
			if now.Sub(v.fetchedAt) >= v.ttl() {
				delete(c.cache, k)
			}
		}

		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}
	c.cache[hk] = cachedActor{actor: actor, fetchedAt: time.Now()}
	c.mu.Unlock()

	return actor, nil
}
