// Package search provides hybrid retrieval: two-step vector search,
// keyword search, tiered web sources, and Reciprocal Rank Fusion (RRF).
package search

import (
	"context"

	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/store"
)

// Retrieval tiers, in priority order. Lower tiers win ties.
const (
	TierLocal   = 1 // local vector + keyword indexes
	TierWebKB   = 2 // cached web knowledge base
	TierLiveWeb = 3 // live web search
)

// Ranking method names recorded on retrieved items.
const (
	RankingLocalApproximate = "local_approximate"
	RankingKeywordBM25      = "keyword_bm25"
)

// ReEmbedRankingMethod names the ranking method for a premium re-embedding
// pass, e.g. "gemini_re_embedding".
func ReEmbedRankingMethod(backend embed.Backend) string {
	return string(backend) + "_re_embedding"
}

// RetrievedItem is the uniform shape every retrieval tier produces. Score
// is canonical: each stage that re-ranks overwrites it.
type RetrievedItem struct {
	ID            string
	Text          string
	Score         float64
	Rank          int
	Tier          int
	RankingMethod string
	Metadata      store.Payload
}

// TierSource produces ranked items for one retrieval tier. The web
// knowledge base and the live web provider plug in through this.
type TierSource interface {
	Retrieve(ctx context.Context, query string, topK int) ([]*RetrievedItem, error)
}

// WebMode controls when the live web tier runs.
type WebMode string

const (
	// WebModeParallel queries the live web alongside the local tiers.
	WebModeParallel WebMode = "parallel"

	// WebModeOnLowConfidence queries the live web only when local results
	// score below the confidence threshold or the query has temporal
	// intent.
	WebModeOnLowConfidence WebMode = "on_low_confidence"
)

// Options configures a single hybrid retrieval call.
type Options struct {
	// TopK is the number of results to return (default 10).
	TopK int

	// Filters restricts local results by payload field equality.
	Filters store.Filters

	// Backend selects the premium embedding space for query embedding and
	// candidate re-ranking. Empty means local only.
	Backend embed.Backend

	// QueryVector is an optional precomputed local-space query embedding.
	// The orchestrator embeds once and shares the vector with the cache.
	QueryVector []float32

	// EnableWeb turns on the live web tier.
	EnableWeb bool

	// WebMode selects when the live web tier runs (default
	// on_low_confidence).
	WebMode WebMode
}

// Stats reports per-tier result counts and which tiers were consulted.
type Stats struct {
	Tier1Results int  `json:"tier_1_results"`
	Tier2Results int  `json:"tier_2_results"`
	Tier3Results int  `json:"tier_3_results"`
	WebConsulted bool `json:"web_consulted"`
}

// Result is the outcome of a hybrid retrieval.
type Result struct {
	Items []*RetrievedItem
	Stats Stats
}
