package search

import (
	"math"
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (Azure AI Search, OpenSearch).
const DefaultRRFConstant = 60

// Tier weights for RRF contributions. Local results outrank cached web
// knowledge, which outranks live web results.
var tierWeights = map[int]float64{
	TierLocal:   1.0,
	TierWebKB:   0.9,
	TierLiveWeb: 0.7,
}

// RankedList is one ranked result list entering fusion, tagged with its
// tier. A tier may contribute more than one list (vector and keyword are
// both tier 1).
type RankedList struct {
	Tier  int
	Items []*RetrievedItem
}

// Fusion combines ranked lists with tier-weighted Reciprocal Rank Fusion:
//
//	score(d) = Σ_lists weight(tier) / (k + rank)
//
// Items absent from a list contribute at missing_rank = max(list
// lengths) + 1. Fused scores are normalized so the top result is 1.0.
type Fusion struct {
	K int
}

// NewFusion creates an RRF fusion with the default k=60.
func NewFusion() *Fusion {
	return &Fusion{K: DefaultRRFConstant}
}

// NewFusionWithK creates an RRF fusion with a custom k. Non-positive k
// uses the default.
func NewFusionWithK(k int) *Fusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fusion{K: k}
}

// TierWeight returns the RRF weight for a tier. Unknown tiers get the
// live-web weight.
func TierWeight(tier int) float64 {
	if w, ok := tierWeights[tier]; ok {
		return w
	}
	return tierWeights[TierLiveWeb]
}

// fusedItem accumulates one item's contributions across lists.
type fusedItem struct {
	item      *RetrievedItem
	score     float64
	bestTier  int
	tier1Rank int // lowest rank in any tier-1 list, 0 if absent
}

// Fuse combines the lists and returns items sorted by fused score with
// deterministic tie-breaking: lower tier, then lower tier-1 rank, then
// lower chunk index, then lexicographic ID.
func (f *Fusion) Fuse(lists []RankedList) []*RetrievedItem {
	nonEmpty := make([]RankedList, 0, len(lists))
	maxLen := 0
	for _, l := range lists {
		if len(l.Items) == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, l)
		if len(l.Items) > maxLen {
			maxLen = len(l.Items)
		}
	}
	if len(nonEmpty) == 0 {
		return []*RetrievedItem{}
	}
	missingRank := maxLen + 1

	fused := make(map[string]*fusedItem)
	for _, l := range nonEmpty {
		for rank, item := range l.Items {
			fi, ok := fused[item.ID]
			if !ok {
				fi = &fusedItem{item: item, bestTier: l.Tier}
				fused[item.ID] = fi
			}
			if l.Tier < fi.bestTier {
				fi.bestTier = l.Tier
				fi.item = item
			}
			if l.Tier == TierLocal && (fi.tier1Rank == 0 || rank+1 < fi.tier1Rank) {
				fi.tier1Rank = rank + 1
			}
		}
	}

	// Accumulate contributions: real rank when present, missing rank when
	// not.
	for _, l := range nonEmpty {
		weight := TierWeight(l.Tier)
		present := make(map[string]int, len(l.Items))
		for rank, item := range l.Items {
			present[item.ID] = rank + 1
		}
		for id, fi := range fused {
			rank, ok := present[id]
			if !ok {
				rank = missingRank
			}
			fi.score += weight / float64(f.K+rank)
		}
	}

	results := make([]*RetrievedItem, 0, len(fused))
	order := make(map[string]*fusedItem, len(fused))
	for id, fi := range fused {
		out := *fi.item
		out.Score = fi.score
		out.Tier = fi.bestTier
		results = append(results, &out)
		order[id] = fi
	}

	sort.Slice(results, func(i, j int) bool {
		return fuseLess(results[i], results[j], order)
	})

	// Normalize to max 1.0 and assign final ranks.
	maxScore := results[0].Score
	for i, item := range results {
		if maxScore > 0 {
			item.Score = item.Score / maxScore
		}
		item.Rank = i + 1
	}
	return results
}

func fuseLess(a, b *RetrievedItem, order map[string]*fusedItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	fa, fb := order[a.ID], order[b.ID]
	if fa.bestTier != fb.bestTier {
		return fa.bestTier < fb.bestTier
	}
	ra, rb := fa.tier1Rank, fb.tier1Rank
	if ra == 0 {
		ra = math.MaxInt
	}
	if rb == 0 {
		rb = math.MaxInt
	}
	if ra != rb {
		return ra < rb
	}
	if a.Metadata.ChunkIndex != b.Metadata.ChunkIndex {
		return a.Metadata.ChunkIndex < b.Metadata.ChunkIndex
	}
	return a.ID < b.ID
}
