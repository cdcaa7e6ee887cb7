package cache

import (
	"log/slog"

	"github.com/Aman-CERP/archrag/internal/config"
)

// NewFromConfig builds the configured semantic cache. Returns nil when
// caching is disabled; callers treat a nil cache as always-miss.
func NewFromConfig(cfg *config.Config, log *slog.Logger) Cache {
	if !cfg.Cache.IsEnabled() {
		return nil
	}
	return NewRedisCache(RedisConfig{
		Host:                cfg.Cache.Host,
		Password:            cfg.Cache.Password,
		DB:                  cfg.Cache.DB,
		TTL:                 cfg.Cache.TTLDuration(),
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		ScanLimit:           cfg.Cache.ScanLimit,
	}, log)
}
