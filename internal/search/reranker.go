package search

import (
	"context"
	"sort"

	"github.com/Aman-CERP/archrag/internal/store"
)

// DefaultRerankDepth is how many fused results enter the rerank stage.
const DefaultRerankDepth = 20

// Reranker reorders fused results by query relevance. Implementations may
// wrap a cross-encoder model; the default blends a term-overlap heuristic
// with the fused score.
type Reranker interface {
	// Rerank scores and reorders items, returning at most topK (0 = all).
	Rerank(ctx context.Context, query string, items []*RetrievedItem, topK int) ([]*RetrievedItem, error)

	// Close releases resources.
	Close() error
}

// TermOverlapReranker scores items by the fraction of query terms present
// in the item text, blended with the incoming fused score. Blend is the
// weight of the overlap signal; the remainder keeps the fused score.
type TermOverlapReranker struct {
	Blend     float64
	stopWords map[string]struct{}
}

var _ Reranker = (*TermOverlapReranker)(nil)

// NewTermOverlapReranker creates the default heuristic reranker with a
// 0.5 blend.
func NewTermOverlapReranker() *TermOverlapReranker {
	return &TermOverlapReranker{
		Blend:     0.5,
		stopWords: store.BuildStopWordMap(store.DefaultStopWords),
	}
}

// Rerank blends term overlap into each item's score and sorts descending.
func (r *TermOverlapReranker) Rerank(ctx context.Context, query string, items []*RetrievedItem, topK int) ([]*RetrievedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := r.termSet(query)
	if len(queryTerms) > 0 {
		for _, item := range items {
			overlap := r.overlap(queryTerms, item.Text)
			item.Score = r.Blend*overlap + (1-r.Blend)*item.Score
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	for i, item := range items {
		item.Rank = i + 1
	}

	if topK > 0 && topK < len(items) {
		items = items[:topK]
	}
	return items, nil
}

// Close is a no-op.
func (r *TermOverlapReranker) Close() error { return nil }

func (r *TermOverlapReranker) termSet(text string) map[string]struct{} {
	tokens := store.FilterStopWords(store.TokenizeText(text), r.stopWords)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// overlap is the fraction of query terms that appear in the text.
func (r *TermOverlapReranker) overlap(queryTerms map[string]struct{}, text string) float64 {
	docTerms := r.termSet(text)
	matched := 0
	for term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

// NoopReranker keeps the fused order.
type NoopReranker struct{}

var _ Reranker = (*NoopReranker)(nil)

// Rerank returns items unchanged, truncated to topK.
func (n *NoopReranker) Rerank(_ context.Context, _ string, items []*RetrievedItem, topK int) ([]*RetrievedItem, error) {
	if topK > 0 && topK < len(items) {
		items = items[:topK]
	}
	return items, nil
}

// Close is a no-op.
func (n *NoopReranker) Close() error { return nil }
