// Package cache implements the semantic answer cache: generated answers
// keyed by query embedding, matched by cosine similarity instead of
// exact text. A rephrased query that embeds close enough to a cached one
// reuses its answer.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/Aman-CERP/archrag/internal/gen"
)

// DefaultSimilarityThreshold is the minimum cosine similarity between
// query vectors for a cache hit.
const DefaultSimilarityThreshold = 0.92

// DefaultTTL is the answer entry lifetime.
const DefaultTTL = time.Hour

// DefaultScanLimit bounds how many keys one lookup may scan.
const DefaultScanLimit = 512

// DefaultTenant scopes entries when no tenant is given.
const DefaultTenant = "default"

// Entry is one cached answer with the query vector it was stored under.
type Entry struct {
	Query    string      `json:"query"`
	Vector   []float32   `json:"vector"`
	Answer   *gen.Answer `json:"answer"`
	CachedAt time.Time   `json:"cached_at"`
}

// Cache stores and retrieves answers by query-vector similarity. Lookups
// and stores never fail a query: an unavailable backend degrades to a
// miss.
type Cache interface {
	// Get returns the best entry whose vector cosine-matches the query
	// vector at or above the similarity threshold.
	Get(ctx context.Context, query string, vector []float32, tenant string) (*Entry, bool)

	// Set stores the answer under the query and its vector.
	Set(ctx context.Context, query string, vector []float32, answer *gen.Answer, tenant string) error

	// Clear removes entries whose tenant-scoped key matches the glob
	// pattern ("*" clears everything) and returns the number removed.
	Clear(ctx context.Context, pattern string) (int, error)

	// Enabled reports whether the cache is still operational.
	Enabled() bool

	Close() error
}

// keyFor derives the tenant-scoped storage key from the query text.
func keyFor(tenant, query string) string {
	sum := sha256.Sum256([]byte(query))
	return keyPrefix(tenant) + hex.EncodeToString(sum[:])[:16]
}

func keyPrefix(tenant string) string {
	if tenant == "" {
		tenant = DefaultTenant
	}
	return "rag:answers:" + tenant + ":"
}
