package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the default LRU capacity. At 768 dims and
// 4 bytes per value, 1000 entries is about 3 MB.
const DefaultEmbeddingCacheSize = 1000

// CachedModel wraps a Model with an LRU cache keyed by sha256 of the text
// and model name, so repeated queries skip the backend entirely.
type CachedModel struct {
	inner Model
	cache *lru.Cache[string, []float32]
}

var _ Model = (*CachedModel)(nil)

// NewCachedModel wraps inner with an LRU of the given capacity.
func NewCachedModel(inner Model, cacheSize int) *CachedModel {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedModel{inner: inner, cache: cache}
}

func (c *CachedModel) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + c.inner.Name()))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding if present, otherwise computes and
// caches it.
func (c *CachedModel) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch checks the cache per text and embeds only the misses.
func (c *CachedModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIndices []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			missIndices = append(missIndices, i)
			missTexts = append(missTexts, text)
		}
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	embeddings, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIndices {
		results[idx] = embeddings[j]
		c.cache.Add(c.cacheKey(texts[idx]), embeddings[j])
	}
	return results, nil
}

// Dimensions returns the inner embedding dimension.
func (c *CachedModel) Dimensions() int {
	return c.inner.Dimensions()
}

// Name returns the inner model identifier.
func (c *CachedModel) Name() string {
	return c.inner.Name()
}

// Available passes through to the inner model.
func (c *CachedModel) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the inner model.
func (c *CachedModel) Close() error {
	return c.inner.Close()
}

// Inner exposes the wrapped model for backend-specific features such as
// progress callbacks.
func (c *CachedModel) Inner() Model {
	return c.inner
}
