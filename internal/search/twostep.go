package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/store"
)

// CandidateMultiplier is the oversampling factor for the approximate
// candidate fetch before premium re-ranking.
const CandidateMultiplier = 3

// TwoStepRetriever searches the local vector index with an approximate
// query embedding, then re-ranks the candidates in a premium embedding
// space. Premium failures degrade to the approximate ranking; the call
// itself never fails once candidates exist.
type TwoStepRetriever struct {
	vectors  store.VectorIndex
	embedder embed.Embedder
	log      *slog.Logger
}

// NewTwoStepRetriever creates a two-step retriever over the vector index.
func NewTwoStepRetriever(vectors store.VectorIndex, embedder embed.Embedder, log *slog.Logger) *TwoStepRetriever {
	if log == nil {
		log = slog.Default()
	}
	return &TwoStepRetriever{vectors: vectors, embedder: embedder, log: log}
}

// Retrieve returns up to topK items for the query. queryVec is an optional
// precomputed local-space embedding; nil embeds the query here. An error
// means the whole tier failed and should be dropped from fusion.
func (r *TwoStepRetriever) Retrieve(ctx context.Context, query string, queryVec []float32, topK int, filters store.Filters, backend embed.Backend) ([]*RetrievedItem, error) {
	if topK <= 0 {
		return []*RetrievedItem{}, nil
	}

	if queryVec == nil {
		var err error
		queryVec, err = r.embedder.EmbedQuery(ctx, query, backend)
		if err != nil {
			return nil, err
		}
	}

	hits, err := r.vectors.Search(ctx, queryVec, CandidateMultiplier*topK, filters)
	if err != nil {
		return nil, err
	}

	items := make([]*RetrievedItem, len(hits))
	for i, hit := range hits {
		items[i] = &RetrievedItem{
			ID:            hit.ID,
			Text:          hit.Payload.Text,
			Score:         float64(hit.Score),
			Rank:          i + 1,
			Tier:          TierLocal,
			RankingMethod: RankingLocalApproximate,
			Metadata:      hit.Payload,
		}
	}

	if backend != "" && backend != embed.BackendOllama && len(items) > 0 {
		items = r.rerankPremium(ctx, query, items, backend)
	}

	if len(items) > topK {
		items = items[:topK]
	}
	return items, nil
}

// rerankPremium re-embeds the candidates and the query in the premium
// space and sorts by premium cosine similarity. Any failure keeps the
// approximate ranking.
func (r *TwoStepRetriever) rerankPremium(ctx context.Context, query string, items []*RetrievedItem, backend embed.Backend) []*RetrievedItem {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}

	docVecs, queryVec, err := r.embedder.ReEmbed(ctx, texts, query, backend)
	if err != nil {
		r.log.Warn("premium_rerank_failed",
			slog.String("backend", string(backend)),
			slog.Int("candidates", len(items)),
			slog.String("error", err.Error()))
		return items
	}

	method := ReEmbedRankingMethod(backend)
	for i, item := range items {
		item.Score = embed.CosineSimilarity(docVecs[i], queryVec)
		item.RankingMethod = method
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	for i, item := range items {
		item.Rank = i + 1
	}
	return items
}
