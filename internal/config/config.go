package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

// Config represents the complete archrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Library    LibraryConfig    `yaml:"library" json:"library"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Embedding  EmbeddingConfig  `yaml:"embedding" json:"embedding"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Web        WebConfig        `yaml:"web" json:"web"`
	WebKB      WebKBConfig      `yaml:"webkb" json:"webkb"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Compaction CompactionConfig `yaml:"compaction" json:"compaction"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// LibraryConfig configures the document library to ingest.
type LibraryConfig struct {
	// Roots are the directories scanned by ingest and watched by serve --watch.
	Roots []string `yaml:"roots" json:"roots"`
	// Pattern is the default glob for directory ingestion.
	Pattern string `yaml:"pattern" json:"pattern"`
	// Exclude are gitignore-style patterns always skipped.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// MaxFileSizeMB skips files larger than this during scans.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	CORSOrigins    []string `yaml:"cors_origins" json:"cors_origins"`
	RequestTimeout string   `yaml:"request_timeout" json:"request_timeout"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// Workers is the directory-ingest worker pool size.
	Workers int `yaml:"workers" json:"workers"`
	// ChunkSize is the target chunk size in words.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// ChunkOverlap is the overlap carried between split chunks, in words.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
	// MinChunkSize drops trailing split chunks below this word count.
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"`
}

// EmbeddingConfig configures the local embedder and premium backends.
type EmbeddingConfig struct {
	// Backend selects the local embedder: "ollama", "static", or empty
	// for auto-detection (Ollama if reachable, else static).
	Backend string `yaml:"backend" json:"backend"`
	// Model is the local embedding model name.
	Model string `yaml:"model" json:"model"`
	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Dimensions is the local vector size; 0 probes the embedder at init.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// CacheSize is the embedding LRU capacity (entries). 0 disables.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// QueryBackend is the default premium backend for query embedding:
	// "ollama", "gemini", "openai", or empty for local-only.
	QueryBackend string `yaml:"query_backend" json:"query_backend"`

	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai" json:"openai"`
}

// GeminiConfig configures the Gemini premium embedding/generation backend.
type GeminiConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Model   string `yaml:"model" json:"model"`
	APIKey  string `yaml:"api_key" json:"-"`
	// AlignmentMatrix is the path to the premium→local matrix file.
	AlignmentMatrix string `yaml:"alignment_matrix" json:"alignment_matrix"`
}

// OpenAIConfig configures the OpenAI-compatible premium backend.
type OpenAIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
	APIKey  string `yaml:"api_key" json:"-"`
	// AlignmentMatrix is the path to the premium→local matrix file.
	AlignmentMatrix string `yaml:"alignment_matrix" json:"alignment_matrix"`
}

// StoreConfig configures on-disk index locations.
// Empty paths are derived from DataDir during Load.
type StoreConfig struct {
	VectorPath  string `yaml:"vector_path" json:"vector_path"`
	KeywordPath string `yaml:"keyword_path" json:"keyword_path"`
	CatalogPath string `yaml:"catalog_path" json:"catalog_path"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	// TopK is the default number of results returned.
	TopK int `yaml:"top_k" json:"top_k"`
	// RRFConstant is the RRF smoothing parameter (k). Default: 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	// CandidateMultiplier scales topK for tier-1 candidate fetch. Default: 3.
	CandidateMultiplier int `yaml:"candidate_multiplier" json:"candidate_multiplier"`
	// RerankTop is how many fused results the reranker scores. Default: 20.
	RerankTop int `yaml:"rerank_top" json:"rerank_top"`
	// LowConfidenceThreshold triggers on_low_confidence web search when the
	// best local score falls below it.
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold" json:"low_confidence_threshold"`
}

// WebConfig configures live web search providers.
type WebConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// SearchBaseURL is the HTML results endpoint for the snippet provider.
	SearchBaseURL string `yaml:"search_base_url" json:"search_base_url"`
	// TrustedDomains are suffixes scored 0.9.
	TrustedDomains []string `yaml:"trusted_domains" json:"trusted_domains"`
	// BlockedDomains are suffixes scored 0.0 and never ingested.
	BlockedDomains []string `yaml:"blocked_domains" json:"blocked_domains"`
	// MaxQueriesPerMinute is the sliding-window provider rate limit.
	MaxQueriesPerMinute int `yaml:"max_queries_per_minute" json:"max_queries_per_minute"`
	// FetchTimeout is the per-URL fetch timeout.
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout"`
	// MaxResults per provider search.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// WebKBConfig configures the persistent web knowledge base.
type WebKBConfig struct {
	// TTLDays is how long fetched documents stay fresh.
	TTLDays int `yaml:"ttl_days" json:"ttl_days"`
	// MaxSize caps stored web documents; oldest-accessed evicted beyond it.
	MaxSize int `yaml:"max_size" json:"max_size"`
	// MaxChars truncates page text (head+tail) before embedding.
	MaxChars int `yaml:"max_chars" json:"max_chars"`
}

// CacheConfig configures the semantic response cache.
type CacheConfig struct {
	// Enabled defaults to true; pointer so an explicit false survives merging.
	Enabled  *bool  `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	// TTL is the answer entry lifetime.
	TTL string `yaml:"ttl" json:"ttl"`
	// SimilarityThreshold is the minimum cosine similarity for a hit.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	// ScanLimit bounds the per-lookup key scan.
	ScanLimit int `yaml:"scan_limit" json:"scan_limit"`
}

// IsEnabled reports whether the semantic cache is on. Nil means enabled.
func (c *CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// GenerationConfig configures the answer generator.
type GenerationConfig struct {
	// Backend selects the LLM: "ollama", "gemini", or "openai".
	Backend string `yaml:"backend" json:"backend"`
	Model   string `yaml:"model" json:"model"`
	// OllamaHost overrides the embedding Ollama host for generation.
	OllamaHost       string  `yaml:"ollama_host" json:"ollama_host"`
	MaxContextTokens int     `yaml:"max_context_tokens" json:"max_context_tokens"`
	MaxOutputTokens  int     `yaml:"max_output_tokens" json:"max_output_tokens"`
	Temperature      float64 `yaml:"temperature" json:"temperature"`
	Timeout          string  `yaml:"timeout" json:"timeout"`
}

// WatchConfig configures the library file watcher.
type WatchConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Debounce coalesces bursts of filesystem events.
	Debounce string `yaml:"debounce" json:"debounce"`
}

// CompactionConfig configures background vector index compaction.
type CompactionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// OrphanThreshold is the orphan ratio that makes compaction eligible.
	OrphanThreshold float64 `yaml:"orphan_threshold" json:"orphan_threshold"`
	// MinOrphanCount skips compaction for small indexes.
	MinOrphanCount int `yaml:"min_orphan_count" json:"min_orphan_count"`
	// IdleTimeout is how long without searches before compaction may run.
	IdleTimeout string `yaml:"idle_timeout" json:"idle_timeout"`
	// Cooldown is the minimum time between compactions.
	Cooldown string `yaml:"cooldown" json:"cooldown"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File is the log path; empty derives <data_dir>/logs/service.log.
	File       string   `yaml:"file" json:"file"`
	MaxSizeMB  int      `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int      `yaml:"max_backups" json:"max_backups"`
	Stderr     bool     `yaml:"stderr" json:"stderr"`
	RedactKeys []string `yaml:"redact_keys" json:"redact_keys"`
}

// defaultExcludePatterns are always skipped during library scans.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.archrag/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Library: LibraryConfig{
			Roots:         []string{},
			Pattern:       "**/*.md",
			Exclude:       defaultExcludePatterns,
			MaxFileSizeMB: 50,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			CORSOrigins:    []string{"*"},
			RequestTimeout: "120s",
		},
		Ingest: IngestConfig{
			Workers:      runtime.NumCPU(),
			ChunkSize:    512,
			ChunkOverlap: 50,
			MinChunkSize: 64,
		},
		Embedding: EmbeddingConfig{
			Backend:      "", // Empty triggers auto-detection: Ollama → Static
			Model:        "nomic-embed-text",
			OllamaHost:   "", // Empty uses default http://localhost:11434
			Dimensions:   0,  // Probe from embedder
			BatchSize:    32,
			CacheSize:    10000,
			QueryBackend: "",
			Gemini: GeminiConfig{
				Enabled: false,
				Model:   "text-embedding-004",
			},
			OpenAI: OpenAIConfig{
				Enabled: false,
				Model:   "text-embedding-3-small",
			},
		},
		Store: StoreConfig{
			// Empty: derived from data_dir during Load
		},
		Search: SearchConfig{
			TopK:                   10,
			RRFConstant:            60, // Industry standard k=60
			CandidateMultiplier:    3,
			RerankTop:              20,
			LowConfidenceThreshold: 0.45,
		},
		Web: WebConfig{
			Enabled:             false,
			SearchBaseURL:       "https://html.duckduckgo.com/html/",
			TrustedDomains:      []string{".gov", ".edu", ".org"},
			BlockedDomains:      []string{},
			MaxQueriesPerMinute: 10,
			FetchTimeout:        "10s",
			MaxResults:          5,
		},
		WebKB: WebKBConfig{
			TTLDays:  7,
			MaxSize:  10000,
			MaxChars: 8000,
		},
		Cache: CacheConfig{
			Host:                "localhost:6379",
			DB:                  0,
			TTL:                 "1h",
			SimilarityThreshold: 0.92,
			ScanLimit:           512,
		},
		Generation: GenerationConfig{
			Backend:          "ollama",
			Model:            "llama3.2",
			MaxContextTokens: 4096,
			MaxOutputTokens:  1024,
			Temperature:      0.1,
			Timeout:          "120s",
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: "500ms",
		},
		Compaction: CompactionConfig{
			Enabled:         true,
			OrphanThreshold: 0.2,
			MinOrphanCount:  100,
			IdleTimeout:     "30s",
			Cooldown:        "1h",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			Stderr:     false,
		},
	}
}

// defaultDataDir returns the default data directory (~/.archrag).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".archrag")
	}
	return filepath.Join(home, ".archrag")
}

// DefaultConfigPath returns the user configuration path (~/.archrag/config.yaml).
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load loads configuration with increasing precedence:
//  1. Hardcoded defaults
//  2. Config file: explicit path, else $ARCHRAG_CONFIG, else ./archrag.yaml,
//     else ~/.archrag/config.yaml (first that exists)
//  3. Environment variables
//
// The result is normalized (paths resolved against data_dir) and validated.
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	path, required := resolveConfigPath(explicitPath)
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath picks the config file to load. The second return is true
// when the file was explicitly requested and must exist.
func resolveConfigPath(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if v := os.Getenv("ARCHRAG_CONFIG"); v != "" {
		return v, true
	}
	for _, candidate := range []string{"archrag.yaml", "archrag.yml"} {
		if fileExists(candidate) {
			return candidate, false
		}
	}
	if p := DefaultConfigPath(); fileExists(p) {
		return p, false
	}
	return "", false
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ragerr.New(ragerr.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return ragerr.New(ragerr.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	// Library
	if len(other.Library.Roots) > 0 {
		c.Library.Roots = other.Library.Roots
	}
	if other.Library.Pattern != "" {
		c.Library.Pattern = other.Library.Pattern
	}
	if len(other.Library.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Library.Exclude = append(c.Library.Exclude, other.Library.Exclude...)
	}
	if other.Library.MaxFileSizeMB != 0 {
		c.Library.MaxFileSizeMB = other.Library.MaxFileSizeMB
	}

	// Server
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if len(other.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = other.Server.CORSOrigins
	}
	if other.Server.RequestTimeout != "" {
		c.Server.RequestTimeout = other.Server.RequestTimeout
	}

	// Ingest
	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if other.Ingest.ChunkSize != 0 {
		c.Ingest.ChunkSize = other.Ingest.ChunkSize
	}
	if other.Ingest.ChunkOverlap != 0 {
		c.Ingest.ChunkOverlap = other.Ingest.ChunkOverlap
	}
	if other.Ingest.MinChunkSize != 0 {
		c.Ingest.MinChunkSize = other.Ingest.MinChunkSize
	}

	// Embedding
	if other.Embedding.Backend != "" {
		c.Embedding.Backend = other.Embedding.Backend
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.OllamaHost != "" {
		c.Embedding.OllamaHost = other.Embedding.OllamaHost
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}
	if other.Embedding.QueryBackend != "" {
		c.Embedding.QueryBackend = other.Embedding.QueryBackend
	}
	if other.Embedding.Gemini.Enabled {
		c.Embedding.Gemini.Enabled = true
	}
	if other.Embedding.Gemini.Model != "" {
		c.Embedding.Gemini.Model = other.Embedding.Gemini.Model
	}
	if other.Embedding.Gemini.APIKey != "" {
		c.Embedding.Gemini.APIKey = other.Embedding.Gemini.APIKey
	}
	if other.Embedding.Gemini.AlignmentMatrix != "" {
		c.Embedding.Gemini.AlignmentMatrix = other.Embedding.Gemini.AlignmentMatrix
	}
	if other.Embedding.OpenAI.Enabled {
		c.Embedding.OpenAI.Enabled = true
	}
	if other.Embedding.OpenAI.BaseURL != "" {
		c.Embedding.OpenAI.BaseURL = other.Embedding.OpenAI.BaseURL
	}
	if other.Embedding.OpenAI.Model != "" {
		c.Embedding.OpenAI.Model = other.Embedding.OpenAI.Model
	}
	if other.Embedding.OpenAI.APIKey != "" {
		c.Embedding.OpenAI.APIKey = other.Embedding.OpenAI.APIKey
	}
	if other.Embedding.OpenAI.AlignmentMatrix != "" {
		c.Embedding.OpenAI.AlignmentMatrix = other.Embedding.OpenAI.AlignmentMatrix
	}

	// Store
	if other.Store.VectorPath != "" {
		c.Store.VectorPath = other.Store.VectorPath
	}
	if other.Store.KeywordPath != "" {
		c.Store.KeywordPath = other.Store.KeywordPath
	}
	if other.Store.CatalogPath != "" {
		c.Store.CatalogPath = other.Store.CatalogPath
	}

	// Search
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.CandidateMultiplier != 0 {
		c.Search.CandidateMultiplier = other.Search.CandidateMultiplier
	}
	if other.Search.RerankTop != 0 {
		c.Search.RerankTop = other.Search.RerankTop
	}
	if other.Search.LowConfidenceThreshold != 0 {
		c.Search.LowConfidenceThreshold = other.Search.LowConfidenceThreshold
	}

	// Web
	if other.Web.Enabled {
		c.Web.Enabled = true
	}
	if other.Web.SearchBaseURL != "" {
		c.Web.SearchBaseURL = other.Web.SearchBaseURL
	}
	if len(other.Web.TrustedDomains) > 0 {
		c.Web.TrustedDomains = other.Web.TrustedDomains
	}
	if len(other.Web.BlockedDomains) > 0 {
		c.Web.BlockedDomains = other.Web.BlockedDomains
	}
	if other.Web.MaxQueriesPerMinute != 0 {
		c.Web.MaxQueriesPerMinute = other.Web.MaxQueriesPerMinute
	}
	if other.Web.FetchTimeout != "" {
		c.Web.FetchTimeout = other.Web.FetchTimeout
	}
	if other.Web.MaxResults != 0 {
		c.Web.MaxResults = other.Web.MaxResults
	}

	// WebKB
	if other.WebKB.TTLDays != 0 {
		c.WebKB.TTLDays = other.WebKB.TTLDays
	}
	if other.WebKB.MaxSize != 0 {
		c.WebKB.MaxSize = other.WebKB.MaxSize
	}
	if other.WebKB.MaxChars != 0 {
		c.WebKB.MaxChars = other.WebKB.MaxChars
	}

	// Cache: Enabled is a pointer so an explicit false in the file survives.
	if other.Cache.Enabled != nil {
		c.Cache.Enabled = other.Cache.Enabled
	}
	if other.Cache.Host != "" {
		c.Cache.Host = other.Cache.Host
	}
	if other.Cache.Password != "" {
		c.Cache.Password = other.Cache.Password
	}
	if other.Cache.DB != 0 {
		c.Cache.DB = other.Cache.DB
	}
	if other.Cache.TTL != "" {
		c.Cache.TTL = other.Cache.TTL
	}
	if other.Cache.SimilarityThreshold != 0 {
		c.Cache.SimilarityThreshold = other.Cache.SimilarityThreshold
	}
	if other.Cache.ScanLimit != 0 {
		c.Cache.ScanLimit = other.Cache.ScanLimit
	}

	// Generation
	if other.Generation.Backend != "" {
		c.Generation.Backend = other.Generation.Backend
	}
	if other.Generation.Model != "" {
		c.Generation.Model = other.Generation.Model
	}
	if other.Generation.OllamaHost != "" {
		c.Generation.OllamaHost = other.Generation.OllamaHost
	}
	if other.Generation.MaxContextTokens != 0 {
		c.Generation.MaxContextTokens = other.Generation.MaxContextTokens
	}
	if other.Generation.MaxOutputTokens != 0 {
		c.Generation.MaxOutputTokens = other.Generation.MaxOutputTokens
	}
	if other.Generation.Temperature != 0 {
		c.Generation.Temperature = other.Generation.Temperature
	}
	if other.Generation.Timeout != "" {
		c.Generation.Timeout = other.Generation.Timeout
	}

	// Watch
	if other.Watch.Enabled {
		c.Watch.Enabled = true
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Compaction: Enabled is boolean - merge when any field was set
	if other.Compaction.OrphanThreshold != 0 || other.Compaction.MinOrphanCount != 0 ||
		other.Compaction.IdleTimeout != "" || other.Compaction.Cooldown != "" {
		c.Compaction.Enabled = other.Compaction.Enabled
	}
	if other.Compaction.OrphanThreshold != 0 {
		c.Compaction.OrphanThreshold = other.Compaction.OrphanThreshold
	}
	if other.Compaction.MinOrphanCount != 0 {
		c.Compaction.MinOrphanCount = other.Compaction.MinOrphanCount
	}
	if other.Compaction.IdleTimeout != "" {
		c.Compaction.IdleTimeout = other.Compaction.IdleTimeout
	}
	if other.Compaction.Cooldown != "" {
		c.Compaction.Cooldown = other.Compaction.Cooldown
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxBackups != 0 {
		c.Logging.MaxBackups = other.Logging.MaxBackups
	}
	if other.Logging.Stderr {
		c.Logging.Stderr = true
	}
	if len(other.Logging.RedactKeys) > 0 {
		c.Logging.RedactKeys = append(c.Logging.RedactKeys, other.Logging.RedactKeys...)
	}
}

// applyEnvOverrides applies environment variable overrides. Cache, premium
// backend, and web knowledge base variables keep their service-level names;
// everything else uses the ARCHRAG_ prefix.
func (c *Config) applyEnvOverrides() {
	// Cache
	if v := os.Getenv("CACHE_HOST"); v != "" {
		c.Cache.Host = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		c.Cache.TTL = normalizeDuration(v)
	}
	if v := os.Getenv("CACHE_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			c.Cache.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("CACHE_PASSWORD"); v != "" {
		c.Cache.Password = v
	}

	// Premium backends
	if v := os.Getenv("PREMIUM_BACKEND_URL"); v != "" {
		c.Embedding.OpenAI.BaseURL = v
		c.Embedding.OpenAI.Enabled = true
	}
	if v := os.Getenv("PREMIUM_API_KEY"); v != "" {
		c.Embedding.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embedding.OpenAI.APIKey == "" {
		c.Embedding.OpenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Embedding.Gemini.APIKey = v
		c.Embedding.Gemini.Enabled = true
	}
	if v := os.Getenv("QUERY_EMBEDDER_TYPE"); v != "" {
		c.Embedding.QueryBackend = strings.ToLower(v)
	}
	if v := os.Getenv("EMBEDDING_ALIGNMENT_MATRIX_PATH_GEMINI"); v != "" {
		c.Embedding.Gemini.AlignmentMatrix = v
	}
	if v := os.Getenv("EMBEDDING_ALIGNMENT_MATRIX_PATH_OPENAI"); v != "" {
		c.Embedding.OpenAI.AlignmentMatrix = v
	}

	// Web knowledge base + web search
	if v := os.Getenv("WEB_KB_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WebKB.TTLDays = n
		}
	}
	if v := os.Getenv("WEB_KB_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WebKB.MaxSize = n
		}
	}
	if v := os.Getenv("WEB_SEARCH_TRUSTED_DOMAINS"); v != "" {
		c.Web.TrustedDomains = splitCommaList(v)
	}
	if v := os.Getenv("WEB_SEARCH_MAX_QUERIES_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Web.MaxQueriesPerMinute = n
		}
	}

	// Store locations
	if v := os.Getenv("VECTOR_PATH"); v != "" {
		c.Store.VectorPath = v
	}
	if v := os.Getenv("KEYWORD_PATH"); v != "" {
		c.Store.KeywordPath = v
	}

	// ARCHRAG_* overrides
	if v := os.Getenv("ARCHRAG_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ARCHRAG_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("ARCHRAG_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("ARCHRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ARCHRAG_OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv("ARCHRAG_EMBEDDING_BACKEND"); v != "" {
		c.Embedding.Backend = v
	}
	if v := os.Getenv("ARCHRAG_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("ARCHRAG_GENERATION_BACKEND"); v != "" {
		c.Generation.Backend = v
	}
	if v := os.Getenv("ARCHRAG_GENERATION_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("ARCHRAG_CACHE_ENABLED"); v != "" {
		enabled := isTruthy(v)
		c.Cache.Enabled = &enabled
	}
	if v := os.Getenv("ARCHRAG_WEB_ENABLED"); v != "" {
		c.Web.Enabled = isTruthy(v)
	}
}

// normalize expands home-relative paths and derives store, log, and
// alignment paths from the data directory.
func (c *Config) normalize() {
	c.DataDir = expandHome(c.DataDir)
	for i, root := range c.Library.Roots {
		c.Library.Roots[i] = expandHome(root)
	}

	if c.Store.VectorPath == "" {
		c.Store.VectorPath = filepath.Join(c.DataDir, "index", "vector")
	} else {
		c.Store.VectorPath = expandHome(c.Store.VectorPath)
	}
	if c.Store.KeywordPath == "" {
		c.Store.KeywordPath = filepath.Join(c.DataDir, "index", "keyword.bleve")
	} else {
		c.Store.KeywordPath = expandHome(c.Store.KeywordPath)
	}
	if c.Store.CatalogPath == "" {
		c.Store.CatalogPath = filepath.Join(c.DataDir, "catalog.db")
	} else {
		c.Store.CatalogPath = expandHome(c.Store.CatalogPath)
	}

	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "logs", "service.log")
	} else {
		c.Logging.File = expandHome(c.Logging.File)
	}

	if c.Embedding.Gemini.AlignmentMatrix != "" {
		c.Embedding.Gemini.AlignmentMatrix = expandHome(c.Embedding.Gemini.AlignmentMatrix)
	}
	if c.Embedding.OpenAI.AlignmentMatrix != "" {
		c.Embedding.OpenAI.AlignmentMatrix = expandHome(c.Embedding.OpenAI.AlignmentMatrix)
	}
}

// TelemetryPath returns the sqlite telemetry database location.
func (c *Config) TelemetryPath() string {
	return filepath.Join(c.DataDir, "telemetry.db")
}

// WebKBVectorPath returns the web knowledge base vector collection location.
func (c *Config) WebKBVectorPath() string {
	return filepath.Join(c.DataDir, "index", "webkb")
}

// WebKBCatalogPath returns the web knowledge base sqlite location.
func (c *Config) WebKBCatalogPath() string {
	return filepath.Join(c.DataDir, "webkb.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "archrag.lock")
}

// AlignmentDir returns the default alignment matrix directory.
func (c *Config) AlignmentDir() string {
	return filepath.Join(c.DataDir, "alignment")
}

// Validate validates the configuration and returns a coded error if invalid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ragerr.ConfigError(
			fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port), nil)
	}

	if c.Ingest.ChunkSize <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize), nil)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return ragerr.ConfigError(
			fmt.Sprintf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap), nil)
	}
	if c.Ingest.MinChunkSize <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("ingest.min_chunk_size must be positive, got %d", c.Ingest.MinChunkSize), nil)
	}
	if c.Ingest.Workers < 1 {
		return ragerr.ConfigError(
			fmt.Sprintf("ingest.workers must be at least 1, got %d", c.Ingest.Workers), nil)
	}

	validLocal := map[string]bool{"": true, "ollama": true, "static": true}
	if !validLocal[strings.ToLower(c.Embedding.Backend)] {
		return ragerr.ConfigError(
			fmt.Sprintf("embedding.backend must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embedding.Backend), nil)
	}
	validQuery := map[string]bool{"": true, "ollama": true, "gemini": true, "openai": true}
	if !validQuery[strings.ToLower(c.Embedding.QueryBackend)] {
		return ragerr.ConfigError(
			fmt.Sprintf("embedding.query_backend must be 'ollama', 'gemini', 'openai', or empty, got %s", c.Embedding.QueryBackend), nil)
	}

	if c.Search.RRFConstant <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant), nil)
	}
	if c.Search.CandidateMultiplier < 1 {
		return ragerr.ConfigError(
			fmt.Sprintf("search.candidate_multiplier must be at least 1, got %d", c.Search.CandidateMultiplier), nil)
	}

	if c.Cache.SimilarityThreshold <= 0 || c.Cache.SimilarityThreshold > 1 {
		return ragerr.ConfigError(
			fmt.Sprintf("cache.similarity_threshold must be in (0, 1], got %f", c.Cache.SimilarityThreshold), nil)
	}
	if c.Cache.ScanLimit <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("cache.scan_limit must be positive, got %d", c.Cache.ScanLimit), nil)
	}

	if c.WebKB.TTLDays <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("webkb.ttl_days must be positive, got %d", c.WebKB.TTLDays), nil)
	}
	if c.WebKB.MaxSize <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("webkb.max_size must be positive, got %d", c.WebKB.MaxSize), nil)
	}

	if c.Web.MaxQueriesPerMinute <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("web.max_queries_per_minute must be positive, got %d", c.Web.MaxQueriesPerMinute), nil)
	}

	validGen := map[string]bool{"ollama": true, "gemini": true, "openai": true}
	if !validGen[strings.ToLower(c.Generation.Backend)] {
		return ragerr.ConfigError(
			fmt.Sprintf("generation.backend must be 'ollama', 'gemini', or 'openai', got %s", c.Generation.Backend), nil)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return ragerr.ConfigError(
			fmt.Sprintf("generation.temperature must be in [0, 2], got %f", c.Generation.Temperature), nil)
	}
	if c.Generation.MaxContextTokens <= 0 {
		return ragerr.ConfigError(
			fmt.Sprintf("generation.max_context_tokens must be positive, got %d", c.Generation.MaxContextTokens), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return ragerr.ConfigError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}

	// Duration strings must parse
	durations := []struct {
		field string
		value string
	}{
		{"server.request_timeout", c.Server.RequestTimeout},
		{"web.fetch_timeout", c.Web.FetchTimeout},
		{"cache.ttl", c.Cache.TTL},
		{"generation.timeout", c.Generation.Timeout},
		{"watch.debounce", c.Watch.Debounce},
		{"compaction.idle_timeout", c.Compaction.IdleTimeout},
		{"compaction.cooldown", c.Compaction.Cooldown},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return ragerr.ConfigError(
				fmt.Sprintf("%s is not a valid duration: %q", d.field, d.value), err)
		}
	}

	return nil
}

// Duration accessors with defaults.

// Timeout returns the parsed server request timeout.
func (c *ServerConfig) Timeout() time.Duration {
	return parseDurationOr(c.RequestTimeout, 120*time.Second)
}

// TTLDuration returns the parsed cache entry TTL.
func (c *CacheConfig) TTLDuration() time.Duration {
	return parseDurationOr(c.TTL, time.Hour)
}

// FetchTimeoutDuration returns the parsed per-URL fetch timeout.
func (c *WebConfig) FetchTimeoutDuration() time.Duration {
	return parseDurationOr(c.FetchTimeout, 10*time.Second)
}

// TimeoutDuration returns the parsed generation timeout.
func (c *GenerationConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, 120*time.Second)
}

// DebounceDuration returns the parsed watch debounce interval.
func (c *WatchConfig) DebounceDuration() time.Duration {
	return parseDurationOr(c.Debounce, 500*time.Millisecond)
}

// IdleTimeoutDuration returns the parsed compaction idle timeout.
func (c *CompactionConfig) IdleTimeoutDuration() time.Duration {
	return parseDurationOr(c.IdleTimeout, 30*time.Second)
}

// CooldownDuration returns the parsed compaction cooldown.
func (c *CompactionConfig) CooldownDuration() time.Duration {
	return parseDurationOr(c.Cooldown, time.Hour)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// normalizeDuration accepts either a Go duration string or bare seconds.
func normalizeDuration(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.ParseDuration(s); err == nil {
		return s
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return fmt.Sprintf("%ds", n)
	}
	return s
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// expandHome expands a leading ~ to the user home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ragerr.InternalError("failed to marshal config", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ragerr.IOError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ragerr.IOError("failed to write config file", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
