package search

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/archrag/internal/store"
)

// Default hybrid retrieval parameters.
const (
	DefaultTopK = 10
	MaxTopK     = 100

	// DefaultLowConfidenceThreshold is the top local score below which
	// on_low_confidence mode consults the live web.
	DefaultLowConfidenceThreshold = 0.45
)

// HybridConfig configures the hybrid retriever.
type HybridConfig struct {
	// RRFConstant is the fusion smoothing parameter (default 60).
	RRFConstant int

	// RerankDepth is how many fused results enter reranking (default 20).
	RerankDepth int

	// LowConfidenceThreshold gates the on_low_confidence web mode.
	LowConfidenceThreshold float64
}

// DefaultHybridConfig returns the default hybrid retrieval configuration.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		RRFConstant:            DefaultRRFConstant,
		RerankDepth:            DefaultRerankDepth,
		LowConfidenceThreshold: DefaultLowConfidenceThreshold,
	}
}

// HybridRetriever fans out across the retrieval tiers, fuses the ranked
// lists with tier-weighted RRF, and reranks the fused head. A failed tier
// is dropped from fusion; every tier failing yields an empty result.
type HybridRetriever struct {
	local    *TwoStepRetriever
	keywords store.KeywordIndex
	webKB    TierSource // nil disables tier 2
	liveWeb  TierSource // nil disables tier 3
	fusion   *Fusion
	reranker Reranker
	cfg      HybridConfig
	log      *slog.Logger
}

// NewHybridRetriever wires the hybrid retriever. webKB and liveWeb may be
// nil; their tiers are then skipped.
func NewHybridRetriever(local *TwoStepRetriever, keywords store.KeywordIndex, webKB, liveWeb TierSource, reranker Reranker, cfg HybridConfig, log *slog.Logger) *HybridRetriever {
	if cfg.RerankDepth <= 0 {
		cfg.RerankDepth = DefaultRerankDepth
	}
	if cfg.LowConfidenceThreshold <= 0 {
		cfg.LowConfidenceThreshold = DefaultLowConfidenceThreshold
	}
	if reranker == nil {
		reranker = NewTermOverlapReranker()
	}
	if log == nil {
		log = slog.Default()
	}
	return &HybridRetriever{
		local:    local,
		keywords: keywords,
		webKB:    webKB,
		liveWeb:  liveWeb,
		fusion:   NewFusionWithK(cfg.RRFConstant),
		reranker: reranker,
		cfg:      cfg,
		log:      log,
	}
}

// Retrieve runs the tiered fan-out for one query.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if opts.WebMode == "" {
		opts.WebMode = WebModeOnLowConfidence
	}
	candidateK := CandidateMultiplier * topK

	var (
		mu       sync.Mutex
		vecItems []*RetrievedItem
		kwItems  []*RetrievedItem
		kbItems  []*RetrievedItem
		webItems []*RetrievedItem
	)
	webConsulted := false

	g, gctx := errgroup.WithContext(ctx)

	// Tier failures drop the tier, never the query, so every goroutine
	// returns nil.
	g.Go(func() error {
		items, err := h.local.Retrieve(gctx, query, opts.QueryVector, candidateK, opts.Filters, opts.Backend)
		if err != nil {
			h.log.Warn("vector_tier_failed", slog.String("error", err.Error()))
			return nil
		}
		mu.Lock()
		vecItems = items
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		hits, err := h.keywords.Search(gctx, query, candidateK, opts.Filters)
		if err != nil {
			h.log.Warn("keyword_tier_failed", slog.String("error", err.Error()))
			return nil
		}
		items := make([]*RetrievedItem, len(hits))
		for i, hit := range hits {
			items[i] = &RetrievedItem{
				ID:            hit.ID,
				Text:          hit.Text,
				Score:         hit.Score,
				Rank:          i + 1,
				Tier:          TierLocal,
				RankingMethod: RankingKeywordBM25,
				Metadata:      hit.Payload,
			}
		}
		mu.Lock()
		kwItems = items
		mu.Unlock()
		return nil
	})

	if h.webKB != nil {
		g.Go(func() error {
			items, err := h.webKB.Retrieve(gctx, query, topK)
			if err != nil {
				h.log.Warn("webkb_tier_failed", slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			kbItems = items
			mu.Unlock()
			return nil
		})
	}

	liveWebEnabled := opts.EnableWeb && h.liveWeb != nil
	if liveWebEnabled && opts.WebMode == WebModeParallel {
		webConsulted = true
		g.Go(func() error {
			items, err := h.liveWeb.Retrieve(gctx, query, topK)
			if err != nil {
				h.log.Warn("web_tier_failed", slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			webItems = items
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	if liveWebEnabled && opts.WebMode == WebModeOnLowConfidence && h.shouldConsultWeb(query, vecItems) {
		webConsulted = true
		items, err := h.liveWeb.Retrieve(ctx, query, topK)
		if err != nil {
			h.log.Warn("web_tier_failed", slog.String("error", err.Error()))
		} else {
			webItems = items
		}
	}

	stats := Stats{
		Tier1Results: len(vecItems) + len(kwItems),
		Tier2Results: len(kbItems),
		Tier3Results: len(webItems),
		WebConsulted: webConsulted,
	}

	fused := h.fusion.Fuse([]RankedList{
		{Tier: TierLocal, Items: vecItems},
		{Tier: TierLocal, Items: kwItems},
		{Tier: TierWebKB, Items: kbItems},
		{Tier: TierLiveWeb, Items: webItems},
	})
	if len(fused) == 0 {
		return &Result{Items: []*RetrievedItem{}, Stats: stats}, nil
	}

	depth := h.cfg.RerankDepth
	if depth > len(fused) {
		depth = len(fused)
	}
	reranked, err := h.reranker.Rerank(ctx, query, fused[:depth], topK)
	if err != nil {
		h.log.Warn("rerank_failed", slog.String("error", err.Error()))
		if topK < len(fused) {
			fused = fused[:topK]
		}
		return &Result{Items: fused, Stats: stats}, nil
	}

	return &Result{Items: reranked, Stats: stats}, nil
}

// shouldConsultWeb decides whether on_low_confidence mode needs the live
// web: weak or absent local vector results, or temporal intent.
func (h *HybridRetriever) shouldConsultWeb(query string, vecItems []*RetrievedItem) bool {
	if HasTemporalIntent(query) {
		return true
	}
	if len(vecItems) == 0 {
		return true
	}
	top := vecItems[0].Score
	for _, item := range vecItems {
		if item.Score > top {
			top = item.Score
		}
	}
	return top < h.cfg.LowConfidenceThreshold
}

// Close releases the reranker.
func (h *HybridRetriever) Close() error {
	return h.reranker.Close()
}
