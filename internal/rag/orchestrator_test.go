package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/archrag/internal/gen"
	"github.com/Aman-CERP/archrag/internal/store"
)

func TestOrchestrator_IngestDocument(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "hnsw.md", hnswDoc)

	n, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)
	require.Positive(t, n)

	assert.Equal(t, n, o.c.Vectors.Count())
	kwCount, err := o.c.Keywords.Count()
	require.NoError(t, err)
	assert.Equal(t, n, kwCount)

	doc, err := o.c.Catalog.GetDocument(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, n, doc.ChunkCount)
	assert.Equal(t, store.DocumentTypeMarkdown, doc.Type)
	assert.NotEmpty(t, doc.ContentHash)
}

func TestOrchestrator_IngestDocumentSkipsUnchanged(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "hnsw.md", hnswDoc)

	n, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)
	require.Positive(t, n)

	again, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)
	assert.Zero(t, again)

	forced, err := o.IngestDocument(ctx, path, true)
	require.NoError(t, err)
	assert.Equal(t, n, forced)
}

func TestOrchestrator_IngestDocumentReplacesChanged(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", hnswDoc)

	_, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)

	writeDoc(t, dir, "doc.md", "# Shorter\n\nOne small paragraph now.\n")
	n, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)
	require.Positive(t, n)

	// No stale chunks from the longer first version survive.
	assert.Equal(t, n, o.c.Vectors.Count())
	doc, err := o.c.Catalog.GetDocument(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, n, doc.ChunkCount)
}

func TestOrchestrator_IngestDocumentMissing(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.IngestDocument(context.Background(), "/nonexistent/doc.md", false)
	assert.Error(t, err)
}

func TestOrchestrator_IngestDirectory(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "hnsw.md", hnswDoc)
	writeDoc(t, dir, "bleve.md", bleveDoc)
	writeDoc(t, dir, "guides/cache.md", "# Cache\n\nAnswers are cached by query similarity.\n")
	writeDoc(t, dir, "notes.txt", "not matched by the default pattern")

	stats, err := o.IngestDirectory(ctx, dir, "", false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FilesProcessed)
	assert.Equal(t, 3, stats.New)
	assert.Zero(t, stats.Failed)
	assert.Positive(t, stats.TotalChunks)

	stats, err = o.IngestDirectory(ctx, dir, "", false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Unchanged)
	assert.Zero(t, stats.New)
	assert.Zero(t, stats.TotalChunks)
}

func TestOrchestrator_Query(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "hnsw.md", hnswDoc)
	_, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)

	resp, err := o.Query(ctx, &QueryRequest{Query: "how does hnsw deletion work"})
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "[Doc 1]")
	assert.False(t, resp.CacheHit)
	assert.NotEmpty(t, resp.RetrievedDocs)
	assert.Positive(t, resp.RetrievalStats.Tier1Results)
	assert.Positive(t, resp.TokensPrompt)
	for _, doc := range resp.RetrievedDocs {
		assert.Equal(t, path, doc.SourcePath)
	}
}

func TestOrchestrator_QueryEmptyQuery(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Query(context.Background(), &QueryRequest{})
	assert.Error(t, err)
}

func TestOrchestrator_QueryEmptyIndex(t *testing.T) {
	o := newTestOrchestrator(t)
	resp, err := o.Query(context.Background(), &QueryRequest{Query: "anything at all"})
	require.NoError(t, err)
	assert.Equal(t, gen.NoInformationAnswer, resp.Answer)
	assert.Empty(t, resp.RetrievedDocs)
	assert.Zero(t, resp.RetrievalStats.Tier1Results)
}

func TestOrchestrator_QueryCacheRoundTrip(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "hnsw.md", hnswDoc)
	_, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)

	req := &QueryRequest{Query: "how does hnsw deletion work", UseCache: true}
	first, err := o.Query(ctx, req)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := o.Query(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Sources, second.Sources)
}

func TestOrchestrator_QueryRecordsTelemetry(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "hnsw.md", hnswDoc)
	_, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)

	_, err = o.Query(ctx, &QueryRequest{Query: "hnsw layers"})
	require.NoError(t, err)

	agg, err := o.c.Metrics.Aggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.QueryCount)
}

func TestOrchestrator_Stats(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "hnsw.md", hnswDoc)
	n, err := o.IngestDocument(ctx, path, false)
	require.NoError(t, err)

	stats, err := o.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, stats.Vector.PointCount)
	assert.Equal(t, n, stats.Keyword)
	assert.Equal(t, 1, stats.Catalog.DocumentCount)
	assert.Equal(t, n, stats.Catalog.ChunkCount)
	assert.Equal(t, testDims, stats.Embedding.Dimensions)
	assert.True(t, stats.Cache.Enabled)
}

func TestOrchestrator_ConcurrentSamePathIngest(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "hnsw.md", hnswDoc)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := o.IngestDocument(ctx, path, false)
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}

	// Single-flight per path: exactly one ingest's chunks remain.
	doc, err := o.c.Catalog.GetDocument(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, doc.ChunkCount, o.c.Vectors.Count())
}

func TestOrchestrator_CacheStoreSkipsNoInformation(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	req := &QueryRequest{Query: "nothing indexed yet", UseCache: true}
	first, err := o.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, gen.NoInformationAnswer, first.Answer)

	// The empty-corpus answer was not cached; the retry still misses.
	second, err := o.Query(ctx, req)
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
}

func TestDocumentID_Deterministic(t *testing.T) {
	assert.Equal(t, DocumentID("/docs/a.md"), DocumentID("/docs/a.md"))
	assert.NotEqual(t, DocumentID("/docs/a.md"), DocumentID("/docs/b.md"))
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.md", "same content")
	b := writeDoc(t, dir, "b.md", "same content")
	c := writeDoc(t, dir, "c.md", "different content")

	ha, err := hashFile(a)
	require.NoError(t, err)
	hb, err := hashFile(b)
	require.NoError(t, err)
	hc, err := hashFile(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
	assert.Len(t, ha, 64)

	_, err = hashFile(dir + "/missing.md")
	assert.Error(t, err)
}
