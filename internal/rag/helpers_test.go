package rag

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/archrag/internal/cache"
	"github.com/Aman-CERP/archrag/internal/chunk"
	"github.com/Aman-CERP/archrag/internal/config"
	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/extract"
	"github.com/Aman-CERP/archrag/internal/gen"
	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/telemetry"
)

const testDims = 8

// hashEmbedder derives deterministic unit vectors from text so identical
// content always embeds identically.
type hashEmbedder struct{}

var _ embed.Embedder = (*hashEmbedder)(nil)

func hashVector(text string) []float32 {
	vec := make([]float32, testDims)
	for i := range vec {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i)})
		vec[i] = float32(h.Sum32()%1000)/500 - 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (e *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(_ context.Context, text string, _ embed.Backend) ([]float32, error) {
	return hashVector(text), nil
}

func (e *hashEmbedder) ReEmbed(_ context.Context, texts []string, query string, _ embed.Backend) ([][]float32, []float32, error) {
	docs := make([][]float32, len(texts))
	for i, t := range texts {
		docs[i] = hashVector(t)
	}
	return docs, hashVector(query), nil
}

func (e *hashEmbedder) Dimensions() int { return testDims }
func (e *hashEmbedder) Close() error    { return nil }

// citingLLM answers with a [Doc 1] citation when context is present.
type citingLLM struct {
	prompts []string
}

func (l *citingLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.prompts = append(l.prompts, prompt)
	return "HNSW stores points in layered graphs [Doc 1].", nil
}

func (l *citingLLM) Name() string                   { return "stub" }
func (l *citingLLM) Available(context.Context) bool { return true }
func (l *citingLLM) Close() error                   { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	// In-memory stores; nothing to persist between test runs.
	cfg.Store.VectorPath = ""
	cfg.Store.KeywordPath = ""
	cfg.Store.CatalogPath = ""
	cfg.Ingest.Workers = 2
	cfg.Search.TopK = 5
	cfg.Web.Enabled = false
	return cfg
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	cfg := testConfig(t)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	embedder := &hashEmbedder{}
	vectors, err := store.NewHNSWIndex(store.DefaultVectorIndexConfig(testDims))
	require.NoError(t, err)
	keywords, err := store.NewBleveKeywordIndex("", store.DefaultKeywordIndexConfig())
	require.NoError(t, err)
	catalog, err := store.NewSQLiteCatalog("")
	require.NoError(t, err)
	metrics, err := telemetry.NewStore("")
	require.NoError(t, err)

	twoStep := search.NewTwoStepRetriever(vectors, embedder, log)
	retriever := search.NewHybridRetriever(twoStep, keywords, nil, nil,
		search.NewTermOverlapReranker(), search.DefaultHybridConfig(), log)

	o := New(cfg, Components{
		Extractor: extract.New(log),
		Chunker:   chunk.NewChunker(chunk.DefaultOptions()),
		Embedder:  embedder,
		Vectors:   vectors,
		Keywords:  keywords,
		Catalog:   catalog,
		Retriever: retriever,
		Generator: gen.NewGenerator(&citingLLM{}, gen.DefaultGeneratorConfig(), log),
		Cache:     cache.NewMemoryCache(0.9, time.Hour),
		Metrics:   metrics,
	}, log)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const hnswDoc = `# HNSW Index

HNSW builds a layered proximity graph over the embedded vectors. Search
descends from the sparse top layer to the dense bottom layer, narrowing
the candidate set at each step.

## Deletion

Deletes are lazy. Removed points stay in the graph as orphans until a
compaction pass rebuilds it without them.
`

const bleveDoc = `# Keyword Index

The keyword index scores chunks with BM25 over analyzed tokens. Stop
words are removed and short tokens are skipped during analysis.
`
