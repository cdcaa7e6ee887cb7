package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/archrag/internal/cache"
	"github.com/Aman-CERP/archrag/internal/chunk"
	"github.com/Aman-CERP/archrag/internal/config"
	"github.com/Aman-CERP/archrag/internal/embed"
	ragerr "github.com/Aman-CERP/archrag/internal/errors"
	"github.com/Aman-CERP/archrag/internal/extract"
	"github.com/Aman-CERP/archrag/internal/gen"
	"github.com/Aman-CERP/archrag/internal/scanner"
	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/telemetry"
	"github.com/Aman-CERP/archrag/internal/webkb"
)

// DefaultIngestWorkers bounds the directory-ingest pool.
const DefaultIngestWorkers = 4

// maxReportedErrors caps the error list in IngestStats.
const maxReportedErrors = 20

// Components are the injected handles the Orchestrator owns. Vectors,
// Keywords, and Catalog are required; the rest degrade gracefully when
// nil (no cache, no web, no telemetry).
type Components struct {
	Extractor *extract.Extractor
	Chunker   *chunk.Chunker
	Embedder  embed.Embedder
	Vectors   store.VectorIndex
	Keywords  store.KeywordIndex
	Catalog   store.Catalog
	Retriever *search.HybridRetriever
	Generator *gen.Generator
	Cache     cache.Cache
	WebKB     *webkb.Store
	// WebKBVectors is the web knowledge base's vector collection. The KB
	// does not own it, so the orchestrator persists and closes it.
	WebKBVectors store.VectorIndex
	Metrics      *telemetry.Store
}

// ProgressEvent reports one step of an ingest run. Stage is one of
// scan, extract, chunk, embed, index. Total is 0 while scanning.
type ProgressEvent struct {
	Stage   string
	Current int
	Total   int
	File    string
}

// ProgressFunc receives ingest progress updates.
type ProgressFunc func(ProgressEvent)

// Orchestrator runs the ingest and query workflows.
type Orchestrator struct {
	cfg  *config.Config
	c    Components
	log  *slog.Logger
	lock *FileLock

	// progress, when set, receives ingest updates. Set before starting
	// work; not safe to swap mid-ingest.
	progress ProgressFunc

	// inflight serializes concurrent ingests of the same source path.
	inflight sync.Map
}

// SetProgress registers the ingest progress callback. The CLI renderer
// uses it; nil disables reporting.
func (o *Orchestrator) SetProgress(fn ProgressFunc) {
	o.progress = fn
}

func (o *Orchestrator) emitProgress(ev ProgressEvent) {
	if o.progress != nil {
		o.progress(ev)
	}
}

// New creates the orchestrator around pre-built components.
func New(cfg *config.Config, comps Components, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if comps.Extractor == nil {
		comps.Extractor = extract.New(log)
	}
	if comps.Chunker == nil {
		comps.Chunker = chunk.NewChunker(chunk.DefaultOptions())
	}
	return &Orchestrator{cfg: cfg, c: comps, log: log}
}

// DocumentID derives the deterministic document UUID for a source path.
func DocumentID(sourcePath string) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(sourcePath)).String()
}

// IngestDocument ingests one file. Unchanged files (same content hash, or
// same mtime when the hash is absent) are skipped unless force is set.
// Returns the number of chunks indexed, 0 for a skip.
func (o *Orchestrator) IngestDocument(ctx context.Context, path string, force bool) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, ragerr.New(ragerr.ErrCodeInvalidPath, fmt.Sprintf("invalid path: %s", path), err)
	}

	unlock := o.lockPath(absPath)
	defer unlock()

	n, _, err := o.ingestFile(ctx, absPath, force)
	return n, err
}

// ingest outcome classification for directory stats.
type ingestStatus int

const (
	statusNew ingestStatus = iota
	statusChanged
	statusUnchanged
)

func (o *Orchestrator) ingestFile(ctx context.Context, absPath string, force bool) (int, ingestStatus, error) {
	if err := ctx.Err(); err != nil {
		return 0, statusUnchanged, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return 0, statusUnchanged, ragerr.New(ragerr.ErrCodeFileNotFound,
			fmt.Sprintf("document not found: %s", absPath), err)
	}

	hash, err := hashFile(absPath)
	if err != nil {
		return 0, statusUnchanged, ragerr.New(ragerr.ErrCodeFilePermission,
			fmt.Sprintf("failed to read document: %s", absPath), err)
	}

	existing, err := o.c.Catalog.GetDocument(ctx, absPath)
	if err != nil {
		return 0, statusUnchanged, err
	}

	status := statusNew
	if existing != nil {
		status = statusChanged
		if !force {
			unchanged := existing.ContentHash == hash
			if existing.ContentHash == "" {
				unchanged = !info.ModTime().After(existing.MTime)
			}
			if unchanged {
				return 0, statusUnchanged, nil
			}
		}
	}

	// Remove prior chunks before re-indexing so a shrinking document
	// leaves no stale tail chunks behind.
	if existing != nil {
		if _, err := o.c.Vectors.DeleteBy(ctx, store.FieldSourcePath, absPath); err != nil {
			return 0, status, err
		}
		if _, err := o.c.Keywords.DeleteBy(ctx, store.FieldSourcePath, absPath); err != nil {
			return 0, status, err
		}
		if err := o.c.Catalog.DeleteDocument(ctx, absPath); err != nil {
			return 0, status, err
		}
	}

	o.emitProgress(ProgressEvent{Stage: "extract", File: absPath})
	result, err := o.c.Extractor.Extract(ctx, absPath)
	if err != nil {
		return 0, status, err
	}

	o.emitProgress(ProgressEvent{Stage: "chunk", File: absPath})
	chunks := o.c.Chunker.Chunk(absPath, result.Text, chunk.ModeForType(string(result.Type)))
	docID := DocumentID(absPath)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		o.emitProgress(ProgressEvent{Stage: "embed", File: absPath})
		vectors, err := o.c.Embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, status, ragerr.New(ragerr.ErrCodeEmbeddingFailed,
				fmt.Sprintf("failed to embed %s", absPath), err)
		}

		points := make([]store.Point, len(chunks))
		keywordDocs := make([]*store.KeywordDoc, len(chunks))
		for i, ch := range chunks {
			payload := store.Payload{
				SourcePath:   absPath,
				DocumentID:   docID,
				DocumentType: string(result.Type),
				SectionType:  string(ch.SectionType),
				SectionLevel: ch.SectionLevel,
				ChunkIndex:   ch.Index,
				StartChar:    ch.StartChar,
				EndChar:      ch.EndChar,
				FileHash:     hash,
				FileMTime:    info.ModTime().Unix(),
				Text:         ch.Text,
			}
			points[i] = store.Point{ID: ch.ID, Vector: vectors[i], Payload: payload}
			keywordDocs[i] = &store.KeywordDoc{ID: ch.ID, Text: ch.Text, Payload: payload}
		}

		o.emitProgress(ProgressEvent{Stage: "index", File: absPath})
		if err := o.c.Vectors.Upsert(ctx, points); err != nil {
			return 0, status, ragerr.New(ragerr.ErrCodeIndexFailed,
				fmt.Sprintf("vector upsert failed for %s", absPath), err)
		}
		if err := o.c.Keywords.Index(ctx, keywordDocs); err != nil {
			return 0, status, ragerr.New(ragerr.ErrCodeIndexFailed,
				fmt.Sprintf("keyword index failed for %s", absPath), err)
		}
	}

	doc := &store.Document{
		SourcePath:  absPath,
		DocumentID:  docID,
		ContentHash: hash,
		MTime:       info.ModTime(),
		Type:        store.DocumentType(result.Type),
		Confidence:  result.Confidence,
		ChunkCount:  len(chunks),
		IngestedAt:  time.Now(),
	}
	if err := o.c.Catalog.SaveDocument(ctx, doc); err != nil {
		return 0, status, err
	}

	o.log.Info("document_ingested",
		slog.String("source_path", absPath),
		slog.String("document_type", string(result.Type)),
		slog.Int("chunks", len(chunks)),
		slog.Float64("confidence", result.Confidence))
	return len(chunks), status, nil
}

// RemoveDocument deletes a document's chunks from both indexes and its
// catalog row. Returns the number of chunks removed.
func (o *Orchestrator) RemoveDocument(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, ragerr.New(ragerr.ErrCodeInvalidPath, fmt.Sprintf("invalid path: %s", path), err)
	}

	unlock := o.lockPath(absPath)
	defer unlock()

	n, err := o.c.Vectors.DeleteBy(ctx, store.FieldSourcePath, absPath)
	if err != nil {
		return 0, err
	}
	if _, err := o.c.Keywords.DeleteBy(ctx, store.FieldSourcePath, absPath); err != nil {
		return n, err
	}
	if err := o.c.Catalog.DeleteDocument(ctx, absPath); err != nil {
		return n, err
	}
	if n > 0 {
		o.log.Info("document_removed",
			slog.String("source_path", absPath),
			slog.Int("chunks", n))
	}
	return n, nil
}

// IngestDirectory scans the directory and ingests matching files through
// a bounded worker pool. Individual file failures are collected, not
// fatal.
func (o *Orchestrator) IngestDirectory(ctx context.Context, root, pattern string, force bool) (*IngestStats, error) {
	s, err := scanner.New()
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = o.cfg.Library.Pattern
	}
	var maxSize int64
	if o.cfg.Library.MaxFileSizeMB > 0 {
		maxSize = int64(o.cfg.Library.MaxFileSizeMB) * 1024 * 1024
	}

	results, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          root,
		Pattern:          pattern,
		ExcludePatterns:  o.cfg.Library.Exclude,
		RespectGitignore: true,
		MaxFileSize:      maxSize,
	})
	if err != nil {
		return nil, err
	}

	workers := o.cfg.Ingest.Workers
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}

	stats := &IngestStats{}
	var mu sync.Mutex

	// Drain the scan before processing so progress has a known total.
	var files []*scanner.FileInfo
	for r := range results {
		if r.Error != nil {
			stats.Failed++
			stats.Errors = appendError(stats.Errors, r.Error.Error())
			continue
		}
		files = append(files, r.File)
		o.emitProgress(ProgressEvent{Stage: "scan", Current: len(files), File: r.File.Path})
	}
	total := len(files)

	var done int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, file := range files {
		g.Go(func() error {
			unlock := o.lockPath(file.AbsPath)
			defer unlock()

			n, status, err := o.ingestFile(gctx, file.AbsPath, force)

			mu.Lock()
			defer mu.Unlock()
			stats.FilesProcessed++
			done++
			o.emitProgress(ProgressEvent{Stage: "index", Current: done, Total: total, File: file.Path})
			if err != nil {
				stats.Failed++
				stats.Errors = appendError(stats.Errors, fmt.Sprintf("%s: %v", file.Path, err))
				o.log.Warn("ingest_file_failed",
					slog.String("source_path", file.AbsPath),
					slog.String("error", err.Error()))
				return nil
			}
			stats.TotalChunks += n
			switch status {
			case statusNew:
				stats.New++
			case statusChanged:
				stats.Changed++
			case statusUnchanged:
				stats.Unchanged++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	o.persistVectors()
	o.log.Info("directory_ingested",
		slog.String("root", root),
		slog.Int("files", stats.FilesProcessed),
		slog.Int("chunks", stats.TotalChunks),
		slog.Int("new", stats.New),
		slog.Int("changed", stats.Changed),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// Query answers a question: cache, hybrid retrieval, generation,
// telemetry.
func (o *Orchestrator) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req == nil || req.Query == "" {
		return nil, ragerr.New(ragerr.ErrCodeInvalidInput, "query must not be empty", nil)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = o.cfg.Search.TopK
	}

	start := time.Now()
	backend := req.Backend
	if backend == "" {
		backend = embed.Backend(o.cfg.Embedding.QueryBackend)
	}

	// One query embedding serves the cache lookup and tier 1 retrieval.
	queryVec, err := o.c.Embedder.EmbedQuery(ctx, req.Query, backend)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}

	var metrics RetrievalMetrics
	cacheStart := time.Now()
	if req.UseCache && o.c.Cache != nil {
		if entry, ok := o.c.Cache.Get(ctx, req.Query, queryVec, req.Tenant); ok {
			metrics.CacheMS = time.Since(cacheStart).Milliseconds()
			metrics.TotalMS = time.Since(start).Milliseconds()
			resp := &QueryResponse{
				Answer:           entry.Answer.Answer,
				Sources:          entry.Answer.Sources,
				CacheHit:         true,
				RetrievedDocs:    []RetrievedDoc{},
				RetrievalMetrics: metrics,
				TokensPrompt:     entry.Answer.TokensPrompt,
				TokensAnswer:     entry.Answer.TokensAnswer,
			}
			o.recordMetrics(ctx, req, resp)
			return resp, nil
		}
	}
	metrics.CacheMS = time.Since(cacheStart).Milliseconds()

	retrieveStart := time.Now()
	result, err := o.c.Retriever.Retrieve(ctx, req.Query, search.Options{
		TopK:        topK,
		Filters:     req.Filters,
		Backend:     backend,
		QueryVector: queryVec,
		EnableWeb:   req.EnableWeb && o.cfg.Web.Enabled,
		WebMode:     req.WebMode,
	})
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeSearchFailed, "retrieval failed", err)
	}
	metrics.RetrieveMS = time.Since(retrieveStart).Milliseconds()

	generateStart := time.Now()
	answer, err := o.c.Generator.Generate(ctx, req.Query, result.Items)
	if err != nil {
		return nil, err
	}
	metrics.GenerateMS = time.Since(generateStart).Milliseconds()
	metrics.TotalMS = time.Since(start).Milliseconds()

	// Degraded and empty answers are not worth caching.
	if req.UseCache && o.c.Cache != nil &&
		answer.Answer != gen.NoInformationAnswer && answer.Answer != gen.ApologyAnswer {
		if err := o.c.Cache.Set(ctx, req.Query, queryVec, answer, req.Tenant); err != nil {
			o.log.Warn("cache_store_failed", slog.String("error", err.Error()))
		}
	}

	docs := make([]RetrievedDoc, len(result.Items))
	for i, item := range result.Items {
		docs[i] = RetrievedDoc{
			ID:            item.ID,
			SourcePath:    item.Metadata.SourcePath,
			Rank:          item.Rank,
			Tier:          item.Tier,
			Score:         item.Score,
			RankingMethod: item.RankingMethod,
		}
	}

	resp := &QueryResponse{
		Answer:           answer.Answer,
		Sources:          answer.Sources,
		RetrievedDocs:    docs,
		RetrievalStats:   result.Stats,
		RetrievalMetrics: metrics,
		TokensPrompt:     answer.TokensPrompt,
		TokensAnswer:     answer.TokensAnswer,
	}
	o.recordMetrics(ctx, req, resp)
	return resp, nil
}

// Stats assembles the system statistics payload.
func (o *Orchestrator) Stats(ctx context.Context) (*SystemStats, error) {
	catalogStats, err := o.c.Catalog.Stats(ctx)
	if err != nil {
		return nil, err
	}
	keywordCount, err := o.c.Keywords.Count()
	if err != nil {
		return nil, err
	}

	stats := &SystemStats{
		Vector:  o.c.Vectors.Info(),
		Keyword: keywordCount,
		Catalog: *catalogStats,
		Cache:   CacheStats{Enabled: o.c.Cache != nil && o.c.Cache.Enabled()},
	}

	if svc, ok := o.c.Embedder.(*embed.Service); ok {
		stats.Embedding = EmbeddingStats{
			LocalModel: svc.Local().Name(),
			Dimensions: svc.Dimensions(),
		}
		for _, b := range []embed.Backend{embed.BackendGemini, embed.BackendOpenAI} {
			if m, ok := svc.PremiumModel(b); ok {
				stats.Embedding.Premium = append(stats.Embedding.Premium, m.Name())
			}
		}
	} else {
		stats.Embedding = EmbeddingStats{Dimensions: o.c.Embedder.Dimensions()}
	}

	if o.c.WebKB != nil {
		if kbStats, err := o.c.WebKB.Stats(ctx); err == nil {
			stats.WebKB = kbStats
		}
	}
	if o.c.Metrics != nil {
		if agg, err := o.c.Metrics.Aggregates(ctx); err == nil {
			stats.Queries = agg
		}
	}
	return stats, nil
}

// Close shuts down every owned component. The first error wins; the rest
// still close.
func (o *Orchestrator) Close() error {
	o.persistVectors()

	var firstErr error
	closeAll := func(errs ...error) {
		for _, err := range errs {
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	if o.c.Retriever != nil {
		closeAll(o.c.Retriever.Close())
	}
	if o.c.Generator != nil {
		closeAll(o.c.Generator.Close())
	}
	if o.c.Cache != nil {
		closeAll(o.c.Cache.Close())
	}
	if o.c.WebKB != nil {
		closeAll(o.c.WebKB.Close())
	}
	if o.c.WebKBVectors != nil {
		if o.cfg != nil {
			if err := o.c.WebKBVectors.Save(o.cfg.WebKBVectorPath()); err != nil {
				o.log.Warn("webkb_vector_save_failed", slog.String("error", err.Error()))
			}
		}
		closeAll(o.c.WebKBVectors.Close())
	}
	if o.c.Metrics != nil {
		closeAll(o.c.Metrics.Close())
	}
	if o.c.Embedder != nil {
		closeAll(o.c.Embedder.Close())
	}
	closeAll(o.c.Keywords.Close(), o.c.Vectors.Close(), o.c.Catalog.Close())

	if o.lock != nil {
		closeAll(o.lock.Release())
	}
	return firstErr
}

// persistVectors snapshots the HNSW index to disk when a path is set.
func (o *Orchestrator) persistVectors() {
	if o.cfg == nil || o.cfg.Store.VectorPath == "" {
		return
	}
	if err := o.c.Vectors.Save(o.cfg.Store.VectorPath); err != nil {
		o.log.Warn("vector_index_save_failed",
			slog.String("path", o.cfg.Store.VectorPath),
			slog.String("error", err.Error()))
	}
}

// lockPath takes the per-source-path ingest mutex.
func (o *Orchestrator) lockPath(absPath string) func() {
	v, _ := o.inflight.LoadOrStore(absPath, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (o *Orchestrator) recordMetrics(ctx context.Context, req *QueryRequest, resp *QueryResponse) {
	if o.c.Metrics == nil {
		return
	}
	m := &telemetry.QueryMetrics{
		Timestamp: time.Now(),
		QueryHash: telemetry.HashQuery(req.Query),
		TotalMS:   resp.RetrievalMetrics.TotalMS,
		Stages: telemetry.StageMS{
			Cache:    resp.RetrievalMetrics.CacheMS,
			Retrieve: resp.RetrievalMetrics.RetrieveMS,
			Generate: resp.RetrievalMetrics.GenerateMS,
		},
		Tiers: telemetry.TierCounts{
			Local:   resp.RetrievalStats.Tier1Results,
			WebKB:   resp.RetrievalStats.Tier2Results,
			LiveWeb: resp.RetrievalStats.Tier3Results,
		},
		CacheHit:        resp.CacheHit,
		WebConsulted:    resp.RetrievalStats.WebConsulted,
		TokensPrompt:    resp.TokensPrompt,
		TokensAnswer:    resp.TokensAnswer,
		EmbedderBackend: string(req.Backend),
	}
	if err := o.c.Metrics.Record(ctx, m); err != nil {
		o.log.Warn("telemetry_record_failed", slog.String("error", err.Error()))
	}
}

func appendError(errs []string, msg string) []string {
	if len(errs) >= maxReportedErrors {
		return errs
	}
	return append(errs, msg)
}

// hashFile computes the sha256 of the file contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
