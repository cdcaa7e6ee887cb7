// Package telemetry records per-query metrics to a local sqlite store.
// Nothing leaves the machine; the data feeds /stats aggregates and the
// doctor command.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// StageMS breaks one query's latency into pipeline stages.
type StageMS struct {
	Cache    int64 `json:"cache"`
	Retrieve int64 `json:"retrieve"`
	Generate int64 `json:"generate"`
}

// TierCounts is how many results each retrieval tier contributed.
type TierCounts struct {
	Local   int `json:"local"`
	WebKB   int `json:"web_kb"`
	LiveWeb int `json:"live_web"`
}

// QueryMetrics is one query's telemetry record. The query text itself is
// stored only as a hash.
type QueryMetrics struct {
	Timestamp       time.Time  `json:"timestamp"`
	QueryHash       string     `json:"query_hash"`
	TotalMS         int64      `json:"total_ms"`
	Stages          StageMS    `json:"stages"`
	Tiers           TierCounts `json:"tiers"`
	CacheHit        bool       `json:"cache_hit"`
	WebConsulted    bool       `json:"web_consulted"`
	TokensPrompt    int        `json:"tokens_prompt"`
	TokensAnswer    int        `json:"tokens_answer"`
	EmbedderBackend string     `json:"embedder_backend"`
}

// HashQuery derives the stored query identifier.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])[:16]
}

// Aggregates summarizes recorded queries for /stats.
type Aggregates struct {
	QueryCount   int     `json:"query_count"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	P50MS        int64   `json:"p50_ms"`
	P95MS        int64   `json:"p95_ms"`
	// TierUsage is the share of queries where each tier contributed
	// at least one result.
	TierUsage struct {
		Local   float64 `json:"local"`
		WebKB   float64 `json:"web_kb"`
		LiveWeb float64 `json:"live_web"`
	} `json:"tier_usage"`
}
