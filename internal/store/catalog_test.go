package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	cat, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func testDocument(sourcePath, hash string) *Document {
	return &Document{
		SourcePath:  sourcePath,
		DocumentID:  "doc-" + hash,
		ContentHash: hash,
		MTime:       time.Unix(1700000000, 0),
		Type:        DocumentTypeMarkdown,
		Confidence:  0.95,
		ChunkCount:  3,
		IngestedAt:  time.Unix(1700000100, 0),
	}
}

func TestSQLiteCatalog_SaveAndGet(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	doc := testDocument("/docs/a.md", "hash-a")
	require.NoError(t, cat.SaveDocument(ctx, doc))

	got, err := cat.GetDocument(ctx, "/docs/a.md")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, doc.SourcePath, got.SourcePath)
	assert.Equal(t, doc.DocumentID, got.DocumentID)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.True(t, doc.MTime.Equal(got.MTime))
	assert.Equal(t, DocumentTypeMarkdown, got.Type)
	assert.InDelta(t, 0.95, got.Confidence, 0.001)
	assert.Equal(t, 3, got.ChunkCount)
	assert.True(t, doc.IngestedAt.Equal(got.IngestedAt))
}

func TestSQLiteCatalog_GetMissingReturnsNil(t *testing.T) {
	cat := newTestCatalog(t)

	got, err := cat.GetDocument(context.Background(), "/docs/never-ingested.md")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteCatalog_SaveUpserts(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.SaveDocument(ctx, testDocument("/docs/a.md", "hash-v1")))

	updated := testDocument("/docs/a.md", "hash-v2")
	updated.ChunkCount = 7
	require.NoError(t, cat.SaveDocument(ctx, updated))

	got, err := cat.GetDocument(ctx, "/docs/a.md")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash-v2", got.ContentHash)
	assert.Equal(t, 7, got.ChunkCount)

	stats, err := cat.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestSQLiteCatalog_DeleteDocument(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.SaveDocument(ctx, testDocument("/docs/a.md", "hash-a")))
	require.NoError(t, cat.DeleteDocument(ctx, "/docs/a.md"))

	got, err := cat.GetDocument(ctx, "/docs/a.md")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing row is a no-op
	require.NoError(t, cat.DeleteDocument(ctx, "/docs/a.md"))
}

func TestSQLiteCatalog_ListDocumentsOrdered(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	for _, p := range []string{"/docs/c.md", "/docs/a.md", "/docs/b.md"} {
		require.NoError(t, cat.SaveDocument(ctx, testDocument(p, "hash-"+p)))
	}

	docs, err := cat.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "/docs/a.md", docs[0].SourcePath)
	assert.Equal(t, "/docs/b.md", docs[1].SourcePath)
	assert.Equal(t, "/docs/c.md", docs[2].SourcePath)
}

func TestSQLiteCatalog_Stats(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	stats, err := cat.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Equal(t, 0, stats.ChunkCount)

	for i := 0; i < 3; i++ {
		doc := testDocument(fmt.Sprintf("/docs/%d.md", i), fmt.Sprintf("hash-%d", i))
		doc.ChunkCount = i + 1
		require.NoError(t, cat.SaveDocument(ctx, doc))
	}

	stats, err = cat.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 6, stats.ChunkCount)
}

func TestSQLiteCatalog_InMemory(t *testing.T) {
	cat, err := NewSQLiteCatalog("")
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()

	ctx := context.Background()
	require.NoError(t, cat.SaveDocument(ctx, testDocument("/docs/a.md", "hash-a")))

	got, err := cat.GetDocument(ctx, "/docs/a.md")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSQLiteCatalog_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	cat, err := NewSQLiteCatalog(path)
	require.NoError(t, err)
	require.NoError(t, cat.SaveDocument(ctx, testDocument("/docs/a.md", "hash-a")))
	require.NoError(t, cat.Close())

	reopened, err := NewSQLiteCatalog(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetDocument(ctx, "/docs/a.md")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash-a", got.ContentHash)
}

func TestSQLiteCatalog_ClosedOperations(t *testing.T) {
	cat, err := NewSQLiteCatalog("")
	require.NoError(t, err)
	require.NoError(t, cat.Close())
	require.NoError(t, cat.Close()) // idempotent

	ctx := context.Background()
	assert.Error(t, cat.SaveDocument(ctx, testDocument("/docs/a.md", "h")))
	_, err = cat.GetDocument(ctx, "/docs/a.md")
	assert.Error(t, err)
	_, err = cat.ListDocuments(ctx)
	assert.Error(t, err)
	_, err = cat.Stats(ctx)
	assert.Error(t, err)
}
