package client

// The wire types mirror the server's JSON shapes without importing its
// internal packages, so this package stays importable from other
// modules.

// IngestRequest triggers ingestion of a directory or a single file.
// Exactly one of DirectoryPath or FilePath must be set.
type IngestRequest struct {
	DirectoryPath string `json:"directory_path,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
	Pattern       string `json:"pattern,omitempty"`
	ForceReingest bool   `json:"force_reingest,omitempty"`
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	FilesProcessed int      `json:"files_processed"`
	TotalChunks    int      `json:"total_chunks"`
	New            int      `json:"new"`
	Changed        int      `json:"changed"`
	Unchanged      int      `json:"unchanged"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors,omitempty"`
}

// IngestResponse reports the ingestion outcome.
type IngestResponse struct {
	Status         string       `json:"status"`
	FilesProcessed int          `json:"files_processed"`
	TotalChunks    int          `json:"total_chunks"`
	Message        string       `json:"message"`
	Stats          *IngestStats `json:"stats,omitempty"`
}

// QueryRequest is the POST /query body. UseCache nil means the server
// default (enabled).
type QueryRequest struct {
	Query             string `json:"query"`
	TopK              int    `json:"top_k,omitempty"`
	UseCache          *bool  `json:"use_cache,omitempty"`
	UserContext       string `json:"user_context,omitempty"`
	QueryEmbedderType string `json:"query_embedder_type,omitempty"`
	EnableWebSearch   bool   `json:"enable_web_search,omitempty"`
	WebMode           string `json:"web_mode,omitempty"`
}

// Citation is one cited source document.
type Citation struct {
	DocIndex   int     `json:"doc_index"`
	SourcePath string  `json:"source_path"`
	DocumentID string  `json:"document_id"`
	Type       string  `json:"type"`
	SourceType string  `json:"source_type"`
	Score      float64 `json:"score"`
}

// RetrievedDoc describes one retrieved context document.
type RetrievedDoc struct {
	ID            string  `json:"id"`
	SourcePath    string  `json:"source_path"`
	Rank          int     `json:"rank"`
	Tier          int     `json:"tier"`
	Score         float64 `json:"score"`
	RankingMethod string  `json:"ranking_method"`
}

// RetrievalStats is the per-tier result breakdown.
type RetrievalStats struct {
	Tier1Results int  `json:"tier_1_results"`
	Tier2Results int  `json:"tier_2_results"`
	Tier3Results int  `json:"tier_3_results"`
	WebConsulted bool `json:"web_consulted"`
}

// RetrievalMetrics is the per-stage latency breakdown.
type RetrievalMetrics struct {
	TotalMS    int64 `json:"total_ms"`
	CacheMS    int64 `json:"cache_ms"`
	RetrieveMS int64 `json:"retrieve_ms"`
	GenerateMS int64 `json:"generate_ms"`
}

// QueryResponse is the full answer envelope.
type QueryResponse struct {
	Answer           string           `json:"answer"`
	Sources          []Citation       `json:"sources"`
	CacheHit         bool             `json:"cache_hit"`
	RetrievedDocs    []RetrievedDoc   `json:"retrieved_docs"`
	RetrievalStats   RetrievalStats   `json:"retrieval_stats"`
	RetrievalMetrics RetrievalMetrics `json:"retrieval_metrics"`
	TokensPrompt     int              `json:"tokens_prompt"`
	TokensAnswer     int              `json:"tokens_answer"`
}

// VectorInfo describes the vector index.
type VectorInfo struct {
	PointCount int `json:"point_count"`
	VectorSize int `json:"vector_size"`
	Orphans    int `json:"orphans"`
}

// CatalogStats describes the document catalog.
type CatalogStats struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
}

// EmbeddingStats describes the active embedding models.
type EmbeddingStats struct {
	LocalModel string   `json:"local_model"`
	Dimensions int      `json:"dimensions"`
	Premium    []string `json:"premium,omitempty"`
}

// WebKBStats describes the web knowledge base.
type WebKBStats struct {
	DocumentCount int `json:"document_count"`
	ExpiredCount  int `json:"expired_count"`
}

// CacheStats describes the semantic cache state.
type CacheStats struct {
	Enabled bool `json:"enabled"`
}

// QueryAggregates summarizes served queries.
type QueryAggregates struct {
	QueryCount   int     `json:"query_count"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	P50MS        int64   `json:"p50_ms"`
	P95MS        int64   `json:"p95_ms"`
}

// SystemStats is the GET /stats payload.
type SystemStats struct {
	Vector    VectorInfo       `json:"vector"`
	Keyword   int              `json:"keyword_documents"`
	Catalog   CatalogStats     `json:"catalog"`
	Embedding EmbeddingStats   `json:"embedding"`
	WebKB     *WebKBStats      `json:"webkb,omitempty"`
	Cache     CacheStats       `json:"cache"`
	Queries   *QueryAggregates `json:"queries,omitempty"`
}

// ServiceState is the probe outcome for one component.
type ServiceState struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Services map[string]ServiceState `json:"services"`
	Stats    *SystemStats            `json:"stats,omitempty"`
}
