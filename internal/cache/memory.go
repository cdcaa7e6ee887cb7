package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/gen"
)

// MemoryCache is the in-process semantic cache for cacheless deployments
// and tests. Same matching contract as the redis backend, no persistence.
type MemoryCache struct {
	threshold float64
	ttl       time.Duration

	mu      sync.RWMutex
	entries map[string]*Entry

	// now is injectable for expiry tests.
	now func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates the in-memory cache.
func NewMemoryCache(threshold float64, ttl time.Duration) *MemoryCache {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		threshold: threshold,
		ttl:       ttl,
		entries:   make(map[string]*Entry),
		now:       time.Now,
	}
}

// Get returns the most similar unexpired entry in the tenant at or above
// the threshold.
func (c *MemoryCache) Get(_ context.Context, _ string, vector []float32, tenant string) (*Entry, bool) {
	prefix := keyPrefix(tenant)
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Entry
	var bestScore float64
	for key, entry := range c.entries {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if now.Sub(entry.CachedAt) > c.ttl {
			continue
		}
		if len(entry.Vector) != len(vector) {
			continue
		}
		score := embed.CosineSimilarity(entry.Vector, vector)
		if score >= c.threshold && score > bestScore {
			best = entry
			bestScore = score
		}
	}
	if best == nil {
		return nil, false
	}
	out := *best
	return &out, true
}

// Set stores the answer under the query's derived key.
func (c *MemoryCache) Set(_ context.Context, query string, vector []float32, answer *gen.Answer, tenant string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyFor(tenant, query)] = &Entry{
		Query:    query,
		Vector:   vector,
		Answer:   answer,
		CachedAt: c.now(),
	}
	return nil
}

// Clear removes entries whose key matches the tenant-scoped glob pattern.
func (c *MemoryCache) Clear(_ context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	full := "rag:answers:" + pattern

	c.mu.Lock()
	defer c.mu.Unlock()
	deleted := 0
	for key := range c.entries {
		if ok, _ := path.Match(full, key); ok {
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Enabled always reports true for the in-memory backend.
func (c *MemoryCache) Enabled() bool { return true }

// Close is a no-op.
func (c *MemoryCache) Close() error { return nil }
