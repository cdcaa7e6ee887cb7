package rag

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/web"
	"github.com/Aman-CERP/archrag/internal/webkb"
)

type stubProvider struct {
	results []*web.Result
	err     error
	lastMax int
}

func (p *stubProvider) Search(_ context.Context, _ string, maxResults int) ([]*web.Result, error) {
	p.lastMax = maxResults
	if p.err != nil {
		return nil, p.err
	}
	if len(p.results) > maxResults {
		return p.results[:maxResults], nil
	}
	return p.results, nil
}

func (p *stubProvider) HealthCheck(context.Context) bool { return p.err == nil }

func webResult(url, text string, trust float64) *web.Result {
	return &web.Result{
		URL:        url,
		Domain:     "pkg.go.dev",
		Title:      "Result",
		Snippet:    text,
		TrustScore: trust,
		Method:     web.MethodSnippet,
	}
}

func newTestKB(t *testing.T) *webkb.Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	vectors, err := store.NewHNSWIndex(store.DefaultVectorIndexConfig(testDims))
	require.NoError(t, err)
	kb, err := webkb.New("", vectors, &hashEmbedder{}, webkb.DefaultConfig(), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = kb.Close()
		_ = vectors.Close()
	})
	return kb
}

func TestWebKBSource_Retrieve(t *testing.T) {
	kb := newTestKB(t)
	ctx := context.Background()
	_, err := kb.Ingest(ctx, webResult("https://pkg.go.dev/hnsw", "layered graph search over vectors", 0.9), "hnsw")
	require.NoError(t, err)

	src := NewWebKBSource(kb)
	items, err := src.Retrieve(ctx, "layered graph search", 5)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	item := items[0]
	assert.Equal(t, search.TierWebKB, item.Tier)
	assert.Equal(t, RankingWebKBVector, item.RankingMethod)
	assert.Equal(t, "https://pkg.go.dev/hnsw", item.Metadata.SourcePath)
	assert.Equal(t, string(store.DocumentTypeWeb), item.Metadata.DocumentType)
	assert.Equal(t, 1, item.Rank)
}

func TestWebKBSource_EmptyKB(t *testing.T) {
	src := NewWebKBSource(newTestKB(t))
	items, err := src.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLiveWebSource_Retrieve(t *testing.T) {
	provider := &stubProvider{results: []*web.Result{
		webResult("https://pkg.go.dev/a", "first result text", 0.9),
		webResult("https://example.com/b", "second result text", 0.5),
	}}
	src := NewLiveWebSource(provider, nil, 5, nil)

	items, err := src.Retrieve(context.Background(), "golang hnsw", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, search.TierLiveWeb, items[0].Tier)
	assert.Equal(t, RankingLiveWeb, items[0].RankingMethod)
	assert.Equal(t, 0.9, items[0].Score)
	assert.Equal(t, "https://pkg.go.dev/a", items[0].Metadata.SourcePath)
	assert.Equal(t, webkb.DocumentID("https://pkg.go.dev/a"), items[0].ID)
	assert.Equal(t, 2, items[1].Rank)
}

func TestLiveWebSource_PersistsIntoKB(t *testing.T) {
	kb := newTestKB(t)
	provider := &stubProvider{results: []*web.Result{
		webResult("https://pkg.go.dev/a", "first result text", 0.9),
		webResult("https://example.com/b", "second result text", 0.5),
	}}
	src := NewLiveWebSource(provider, kb, 5, nil)

	ctx := context.Background()
	_, err := src.Retrieve(ctx, "golang hnsw", 10)
	require.NoError(t, err)

	count, err := kb.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLiveWebSource_TopKBoundsProvider(t *testing.T) {
	provider := &stubProvider{results: []*web.Result{
		webResult("https://pkg.go.dev/a", "a", 0.9),
		webResult("https://pkg.go.dev/b", "b", 0.9),
		webResult("https://pkg.go.dev/c", "c", 0.9),
	}}
	src := NewLiveWebSource(provider, nil, 5, nil)

	items, err := src.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, provider.lastMax)
}

func TestLiveWebSource_ProviderError(t *testing.T) {
	src := NewLiveWebSource(&stubProvider{err: errors.New("rate limited")}, nil, 5, nil)
	_, err := src.Retrieve(context.Background(), "q", 5)
	assert.Error(t, err)
}
