package gen

import (
	"sort"
	"strings"

	"github.com/Aman-CERP/archrag/internal/search"
)

// minTruncateTokens is the smallest leftover budget worth filling with a
// truncated document.
const minTruncateTokens = 100

// truncateBoundaryRatio is how much of a truncation budget must survive
// after backing up to a sentence or newline boundary.
const truncateBoundaryRatio = 0.8

// estimateTokens is the packing contract: one token per four characters.
// Exact counts are telemetry only.
func estimateTokens(text string) int {
	return len(text) / 4
}

// Pack selects retrieved items by score descending until the token budget
// is spent. When at least minTruncateTokens remain, the next item is cut
// at a sentence or newline boundary and marked Truncated.
func Pack(items []*search.RetrievedItem, maxTokens int) []*ContextDoc {
	if len(items) == 0 || maxTokens <= 0 {
		return []*ContextDoc{}
	}

	ordered := make([]*search.RetrievedItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	docs := make([]*ContextDoc, 0, len(ordered))
	used := 0
	for _, item := range ordered {
		tokens := estimateTokens(item.Text)
		if used+tokens <= maxTokens {
			docs = append(docs, docFromItem(item, item.Text, false, len(docs)+1))
			used += tokens
			continue
		}

		remaining := maxTokens - used
		if remaining >= minTruncateTokens {
			if cut := truncateAtBoundary(item.Text, remaining*4); cut != "" {
				docs = append(docs, docFromItem(item, cut, true, len(docs)+1))
			}
		}
		break
	}
	return docs
}

func docFromItem(item *search.RetrievedItem, text string, truncated bool, index int) *ContextDoc {
	docType := item.Metadata.DocumentType
	if docType == "" {
		docType = "text"
	}
	return &ContextDoc{
		Index:      index,
		Source:     item.Metadata.SourcePath,
		Type:       docType,
		SourceType: SourceTypeForTier(item.Tier),
		ID:         item.ID,
		Text:       text,
		Score:      item.Score,
		Tier:       item.Tier,
		Truncated:  truncated,
	}
}

// truncateAtBoundary cuts text to at most budget characters, backing up
// to the last sentence terminator or newline as long as at least 80% of
// the budget survives. Without such a boundary the cut is hard.
func truncateAtBoundary(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if len(text) <= budget {
		return text
	}

	window := text[:budget]
	floor := int(float64(budget) * truncateBoundaryRatio)

	best := -1
	for i := len(window) - 1; i >= floor; i-- {
		switch window[i] {
		case '\n':
			best = i
		case '.', '!', '?':
			best = i + 1
		}
		if best >= 0 {
			break
		}
	}
	if best >= floor {
		return strings.TrimRight(window[:best], " \t\n")
	}
	return strings.TrimRight(window, " \t\n")
}
