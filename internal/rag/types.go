// Package rag wires the full pipeline: ingestion (extract, chunk, embed,
// index, catalog) and querying (cache, hybrid retrieval, generation,
// telemetry). The Orchestrator owns every component handle.
package rag

import (
	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/gen"
	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/telemetry"
	"github.com/Aman-CERP/archrag/internal/webkb"
)

// QueryRequest is one question against the library.
type QueryRequest struct {
	Query string `json:"query"`

	// TopK is the number of context documents to retrieve (default 10).
	TopK int `json:"top_k,omitempty"`

	// UseCache enables the semantic cache lookup and store.
	UseCache bool `json:"use_cache"`

	// Tenant scopes cache entries.
	Tenant string `json:"tenant,omitempty"`

	// Backend selects the premium query embedder ("" = config default).
	Backend embed.Backend `json:"backend,omitempty"`

	// EnableWeb allows tier 3 live web search.
	EnableWeb bool `json:"enable_web,omitempty"`

	// WebMode is "parallel" or "on_low_confidence" (default).
	WebMode search.WebMode `json:"web_mode,omitempty"`

	// Filters restrict tier 1 retrieval to matching payloads.
	Filters store.Filters `json:"filters,omitempty"`
}

// RetrievedDoc describes one retrieved document in the response.
type RetrievedDoc struct {
	ID            string  `json:"id"`
	SourcePath    string  `json:"source_path"`
	Rank          int     `json:"rank"`
	Tier          int     `json:"tier"`
	Score         float64 `json:"score"`
	RankingMethod string  `json:"ranking_method"`
}

// RetrievalMetrics is the per-stage latency breakdown for one query.
type RetrievalMetrics struct {
	TotalMS    int64 `json:"total_ms"`
	CacheMS    int64 `json:"cache_ms"`
	RetrieveMS int64 `json:"retrieve_ms"`
	GenerateMS int64 `json:"generate_ms"`
}

// QueryResponse is the full answer envelope.
type QueryResponse struct {
	Answer           string           `json:"answer"`
	Sources          []gen.Citation   `json:"sources"`
	CacheHit         bool             `json:"cache_hit"`
	RetrievedDocs    []RetrievedDoc   `json:"retrieved_docs"`
	RetrievalStats   search.Stats     `json:"retrieval_stats"`
	RetrievalMetrics RetrievalMetrics `json:"retrieval_metrics"`
	TokensPrompt     int              `json:"tokens_prompt"`
	TokensAnswer     int              `json:"tokens_answer"`
}

// IngestStats summarizes one directory ingestion.
type IngestStats struct {
	FilesProcessed int      `json:"files_processed"`
	TotalChunks    int      `json:"total_chunks"`
	New            int      `json:"new"`
	Changed        int      `json:"changed"`
	Unchanged      int      `json:"unchanged"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors,omitempty"`
}

// ReconcileReport describes an index/catalog consistency pass.
type ReconcileReport struct {
	DocumentsChecked int `json:"documents_checked"`
	// MissingVector counts catalog chunks absent from the vector index.
	MissingVector int `json:"missing_vector"`
	// OrphanedChunks counts index chunks whose document left the catalog.
	OrphanedChunks int `json:"orphaned_chunks"`
	// Repaired counts orphaned chunks removed from both indexes.
	Repaired int `json:"repaired"`
}

// SystemStats is the /stats payload.
type SystemStats struct {
	Vector    store.VectorInfo      `json:"vector"`
	Keyword   int                   `json:"keyword_documents"`
	Catalog   store.CatalogStats    `json:"catalog"`
	Embedding EmbeddingStats        `json:"embedding"`
	WebKB     *webkb.Stats          `json:"webkb,omitempty"`
	Cache     CacheStats            `json:"cache"`
	Queries   *telemetry.Aggregates `json:"queries,omitempty"`
}

// EmbeddingStats describes the active embedding models.
type EmbeddingStats struct {
	LocalModel string   `json:"local_model"`
	Dimensions int      `json:"dimensions"`
	Premium    []string `json:"premium,omitempty"`
}

// CacheStats describes the semantic cache state.
type CacheStats struct {
	Enabled bool `json:"enabled"`
}
