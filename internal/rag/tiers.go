package rag

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/web"
	"github.com/Aman-CERP/archrag/internal/webkb"
)

// Ranking methods reported by the web tiers.
const (
	RankingWebKBVector = "webkb_vector"
	RankingLiveWeb     = "web_live"
)

// WebKBSource adapts the web knowledge base to the tier 2 retrieval
// contract.
type WebKBSource struct {
	kb *webkb.Store
}

var _ search.TierSource = (*WebKBSource)(nil)

// NewWebKBSource creates the tier 2 adapter.
func NewWebKBSource(kb *webkb.Store) *WebKBSource {
	return &WebKBSource{kb: kb}
}

// Retrieve searches the knowledge base, excluding expired documents.
func (s *WebKBSource) Retrieve(ctx context.Context, query string, topK int) ([]*search.RetrievedItem, error) {
	hits, err := s.kb.Search(ctx, query, topK, true)
	if err != nil {
		return nil, err
	}

	items := make([]*search.RetrievedItem, 0, len(hits))
	for i, hit := range hits {
		items = append(items, &search.RetrievedItem{
			ID:            hit.ID,
			Text:          hit.Text,
			Score:         hit.Score,
			Rank:          i + 1,
			Tier:          search.TierWebKB,
			RankingMethod: RankingWebKBVector,
			Metadata: store.Payload{
				SourcePath:   hit.URL,
				DocumentID:   hit.ID,
				DocumentType: string(store.DocumentTypeWeb),
				Text:         hit.Text,
			},
		})
	}
	return items, nil
}

// LiveWebSource adapts a web search provider to the tier 3 retrieval
// contract. Results are ranked by trust score and, when a knowledge base
// is attached, persisted for future tier 2 hits.
type LiveWebSource struct {
	provider   web.Provider
	kb         *webkb.Store
	maxResults int
	log        *slog.Logger
}

var _ search.TierSource = (*LiveWebSource)(nil)

// NewLiveWebSource creates the tier 3 adapter. kb may be nil to disable
// persistence.
func NewLiveWebSource(provider web.Provider, kb *webkb.Store, maxResults int, log *slog.Logger) *LiveWebSource {
	if maxResults <= 0 {
		maxResults = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &LiveWebSource{provider: provider, kb: kb, maxResults: maxResults, log: log}
}

// Retrieve searches the live web. Ingestion failures only log; a fetched
// result is still returned to the current query.
func (s *LiveWebSource) Retrieve(ctx context.Context, query string, topK int) ([]*search.RetrievedItem, error) {
	limit := s.maxResults
	if topK > 0 && topK < limit {
		limit = topK
	}

	results, err := s.provider.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	items := make([]*search.RetrievedItem, 0, len(results))
	for i, r := range results {
		id := webkb.DocumentID(r.URL)
		if s.kb != nil {
			if _, err := s.kb.Ingest(ctx, r, query); err != nil {
				s.log.Warn("web_result_ingest_failed",
					slog.String("url", r.URL),
					slog.String("error", err.Error()))
			}
		}
		items = append(items, &search.RetrievedItem{
			ID:            id,
			Text:          r.Text(),
			Score:         r.TrustScore,
			Rank:          i + 1,
			Tier:          search.TierLiveWeb,
			RankingMethod: RankingLiveWeb,
			Metadata: store.Payload{
				SourcePath:   r.URL,
				DocumentID:   id,
				DocumentType: string(store.DocumentTypeWeb),
				Text:         r.Text(),
			},
		})
	}
	return items, nil
}
