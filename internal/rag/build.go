package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/archrag/internal/cache"
	"github.com/Aman-CERP/archrag/internal/chunk"
	"github.com/Aman-CERP/archrag/internal/config"
	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/extract"
	"github.com/Aman-CERP/archrag/internal/gen"
	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/telemetry"
	"github.com/Aman-CERP/archrag/internal/web"
	"github.com/Aman-CERP/archrag/internal/webkb"
)

// OpenOptions tune which subsystems Open wires up.
type OpenOptions struct {
	// SkipLock opens without taking the data-directory lock. Read-only
	// commands (stats, doctor) use this.
	SkipLock bool

	// SkipLLM skips LLM construction. Ingest-only commands use this so a
	// missing generation backend never blocks indexing.
	SkipLLM bool
}

// Open builds the full orchestrator from configuration: stores, embedding
// service, retrieval tiers, generator, cache, and telemetry. The returned
// orchestrator owns every component and the data-directory lock.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, opts OpenOptions) (*Orchestrator, error) {
	if log == nil {
		log = slog.Default()
	}

	var lock *FileLock
	if !opts.SkipLock {
		var err error
		lock, err = AcquireLock(cfg.LockPath())
		if err != nil {
			return nil, err
		}
	}
	// Everything opened so far is torn down when a later step fails.
	var cleanup []func() error
	fail := func(err error) (*Orchestrator, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i]()
		}
		if lock != nil {
			_ = lock.Release()
		}
		return nil, err
	}

	embedder, err := embed.NewServiceFromConfig(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedding service: %w", err))
	}
	cleanup = append(cleanup, embedder.Close)

	vectors, err := openVectorIndex(cfg.Store.VectorPath, embedder.Dimensions())
	if err != nil {
		return fail(fmt.Errorf("failed to open vector index: %w", err))
	}
	cleanup = append(cleanup, vectors.Close)

	keywords, err := store.NewBleveKeywordIndex(cfg.Store.KeywordPath, store.DefaultKeywordIndexConfig())
	if err != nil {
		return fail(fmt.Errorf("failed to open keyword index: %w", err))
	}
	cleanup = append(cleanup, keywords.Close)

	catalog, err := store.NewSQLiteCatalog(cfg.Store.CatalogPath)
	if err != nil {
		return fail(fmt.Errorf("failed to open catalog: %w", err))
	}
	cleanup = append(cleanup, catalog.Close)

	comps := Components{
		Extractor: extract.New(log),
		Chunker: chunk.NewChunker(chunk.Options{
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
			MinChunkSize: cfg.Ingest.MinChunkSize,
		}),
		Embedder: embedder,
		Vectors:  vectors,
		Keywords: keywords,
		Catalog:  catalog,
	}

	var webKBSource, liveWebSource search.TierSource
	if cfg.Web.Enabled {
		kbVectors, err := openVectorIndex(cfg.WebKBVectorPath(), embedder.Dimensions())
		if err != nil {
			return fail(fmt.Errorf("failed to open web KB vector index: %w", err))
		}
		kb, err := webkb.New(cfg.WebKBCatalogPath(), kbVectors, embedder, webkb.Config{
			TTLDays:  cfg.WebKB.TTLDays,
			MaxSize:  cfg.WebKB.MaxSize,
			MaxChars: cfg.WebKB.MaxChars,
		}, log)
		if err != nil {
			_ = kbVectors.Close()
			return fail(fmt.Errorf("failed to open web knowledge base: %w", err))
		}
		cleanup = append(cleanup, kb.Close, kbVectors.Close)
		comps.WebKB = kb
		comps.WebKBVectors = kbVectors

		provider := web.NewExtractorProvider(web.ExtractorConfig{
			Snippet: web.SnippetConfig{
				BaseURL:             cfg.Web.SearchBaseURL,
				MaxQueriesPerMinute: cfg.Web.MaxQueriesPerMinute,
				Trust: web.TrustPolicy{
					TrustedSuffixes: cfg.Web.TrustedDomains,
					BlockedSuffixes: cfg.Web.BlockedDomains,
				},
			},
			FetchTimeout: cfg.Web.FetchTimeoutDuration(),
		}, log)

		webKBSource = NewWebKBSource(kb)
		liveWebSource = NewLiveWebSource(provider, kb, cfg.Web.MaxResults, log)
	}

	twoStep := search.NewTwoStepRetriever(vectors, embedder, log)
	comps.Retriever = search.NewHybridRetriever(twoStep, keywords, webKBSource, liveWebSource,
		search.NewTermOverlapReranker(), search.HybridConfig{
			RRFConstant:            cfg.Search.RRFConstant,
			RerankDepth:            cfg.Search.RerankTop,
			LowConfidenceThreshold: cfg.Search.LowConfidenceThreshold,
		}, log)

	if !opts.SkipLLM {
		llm, err := gen.NewLLMFromConfig(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize generation backend: %w", err))
		}
		comps.Generator = gen.NewGenerator(llm, gen.GeneratorConfig{
			MaxContextTokens: cfg.Generation.MaxContextTokens,
		}, log)
	}

	comps.Cache = cache.NewFromConfig(cfg, log)

	metrics, err := telemetry.NewStore(cfg.TelemetryPath())
	if err != nil {
		// Telemetry is observability only, never a startup failure.
		log.Warn("telemetry_unavailable", slog.String("error", err.Error()))
	} else {
		comps.Metrics = metrics
	}

	o := New(cfg, comps, log)
	o.lock = lock
	return o, nil
}

// openVectorIndex creates an HNSW index and loads the on-disk snapshot
// when one exists.
func openVectorIndex(path string, dimensions int) (*store.HNSWIndex, error) {
	idx, err := store.NewHNSWIndex(store.DefaultVectorIndexConfig(dimensions))
	if err != nil {
		return nil, err
	}
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := idx.Load(path); err != nil {
				_ = idx.Close()
				return nil, err
			}
		}
	}
	return idx, nil
}
