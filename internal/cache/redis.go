package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aman-CERP/archrag/internal/embed"
	ragerr "github.com/Aman-CERP/archrag/internal/errors"
	"github.com/Aman-CERP/archrag/internal/gen"
)

// RedisConfig configures the redis-backed semantic cache.
type RedisConfig struct {
	Host                string
	Password            string
	DB                  int
	TTL                 time.Duration
	SimilarityThreshold float64
	ScanLimit           int
}

// DefaultRedisConfig returns the default redis cache configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:                "localhost:6379",
		TTL:                 DefaultTTL,
		SimilarityThreshold: DefaultSimilarityThreshold,
		ScanLimit:           DefaultScanLimit,
	}
}

// RedisCache is the redis-backed semantic cache. Backend failures degrade
// to misses behind a circuit breaker; a permanent failure such as a
// rejected password disables the cache for the life of the process.
type RedisCache struct {
	client   *redis.Client
	cfg      RedisConfig
	breaker  *ragerr.CircuitBreaker
	log      *slog.Logger
	disabled atomic.Bool
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates the redis cache. The connection is probed lazily;
// an unreachable server costs a warning per failed lookup, never an error.
func NewRedisCache(cfg RedisConfig, log *slog.Logger) *RedisCache {
	if cfg.Host == "" {
		cfg.Host = DefaultRedisConfig().Host
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = DefaultScanLimit
	}
	if log == nil {
		log = slog.Default()
	}

	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Host,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		cfg:     cfg,
		breaker: ragerr.NewCircuitBreaker("semantic_cache"),
		log:     log,
	}
}

// Get scans the tenant prefix, loads candidate entries, and returns the
// most similar one at or above the threshold.
func (c *RedisCache) Get(ctx context.Context, query string, vector []float32, tenant string) (*Entry, bool) {
	if !c.Enabled() || !c.breaker.Allow() {
		return nil, false
	}

	keys, err := c.scanKeys(ctx, keyPrefix(tenant)+"*")
	if err != nil {
		c.observeFailure("cache_lookup_failed", err)
		return nil, false
	}
	if len(keys) == 0 {
		c.breaker.RecordSuccess()
		return nil, false
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.observeFailure("cache_lookup_failed", err)
		return nil, false
	}
	c.breaker.RecordSuccess()

	var best *Entry
	var bestScore float64
	for _, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		if len(entry.Vector) != len(vector) {
			continue
		}
		score := embed.CosineSimilarity(entry.Vector, vector)
		if score >= c.cfg.SimilarityThreshold && score > bestScore {
			e := entry
			best = &e
			bestScore = score
		}
	}
	if best == nil {
		return nil, false
	}

	c.log.Debug("cache_hit",
		slog.String("query", query),
		slog.String("cached_query", best.Query),
		slog.Float64("similarity", bestScore))
	return best, true
}

// Set stores the answer as JSON under the query's derived key with TTL.
func (c *RedisCache) Set(ctx context.Context, query string, vector []float32, answer *gen.Answer, tenant string) error {
	if !c.Enabled() || !c.breaker.Allow() {
		return nil
	}

	entry := Entry{
		Query:    query,
		Vector:   vector,
		Answer:   answer,
		CachedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return ragerr.New(ragerr.ErrCodeInternal, "failed to encode cache entry", err)
	}

	if err := c.client.Set(ctx, keyFor(tenant, query), data, c.cfg.TTL).Err(); err != nil {
		c.observeFailure("cache_store_failed", err)
		return nil
	}
	c.breaker.RecordSuccess()
	return nil
}

// Clear deletes entries matching the tenant-scoped glob pattern.
func (c *RedisCache) Clear(ctx context.Context, pattern string) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	if pattern == "" {
		pattern = "*"
	}

	deleted := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "rag:answers:"+pattern, 100).Result()
		if err != nil {
			c.observeFailure("cache_clear_failed", err)
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

// Enabled reports whether the cache has not been permanently disabled.
func (c *RedisCache) Enabled() bool {
	return !c.disabled.Load()
}

// Close shuts down the redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// scanKeys collects keys for the pattern up to the configured scan cap.
func (c *RedisCache) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if len(keys) >= c.cfg.ScanLimit {
			keys = keys[:c.cfg.ScanLimit]
			break
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// observeFailure records a backend failure. Authentication failures are
// permanent and disable the cache for the rest of the process.
func (c *RedisCache) observeFailure(event string, err error) {
	if isPermanent(err) {
		if !c.disabled.Swap(true) {
			perm := ragerr.New(ragerr.ErrCodeCachePermanent, "semantic cache disabled", err)
			c.log.Warn("cache_disabled_permanently", slog.String("error", perm.Error()))
		}
		return
	}
	c.breaker.RecordFailure()
	c.log.Warn(event, slog.String("error", err.Error()))
}

// isPermanent reports whether the redis error cannot be fixed by retrying.
func isPermanent(err error) bool {
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "NOAUTH") ||
		strings.Contains(msg, "WRONGPASS") ||
		strings.Contains(msg, "NOPERM") ||
		strings.Contains(msg, "INVALID PASSWORD")
}

