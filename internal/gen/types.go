// Package gen turns retrieved context into cited answers: token-budgeted
// context packing, prompt assembly, LLM backends, and citation
// extraction.
package gen

import (
	"context"
)

// Source type labels per retrieval tier.
const (
	SourceTypeLocal = "local"
	SourceTypeWebKB = "web_kb"
	SourceTypeWeb   = "web"
)

// NoInformationAnswer is returned when retrieval produced nothing.
const NoInformationAnswer = "I could not find any relevant information in the indexed documents to answer this question."

// ApologyAnswer is returned when the LLM call fails.
const ApologyAnswer = "I apologize, but I was unable to generate an answer at this time. Please try again."

// ContextDoc is one packed context block handed to the prompt.
type ContextDoc struct {
	// Index is the 1-based [Doc N] number.
	Index int

	// Source is the document path or URL.
	Source string

	// Type is the document type (markdown, pdf, text, web).
	Type string

	// SourceType labels the retrieval tier (local, web_kb, web).
	SourceType string

	// ID is the chunk or web document ID.
	ID string

	// Text is the (possibly truncated) content.
	Text string

	// Score is the retrieval score at packing time.
	Score float64

	// Tier is the retrieval tier the document came from.
	Tier int

	// Truncated marks a document cut at a sentence boundary to fit the
	// remaining budget.
	Truncated bool
}

// Citation is one cited source in the final answer.
type Citation struct {
	DocIndex   int     `json:"doc_index"`
	SourcePath string  `json:"source_path"`
	DocumentID string  `json:"document_id"`
	Type       string  `json:"type"`
	SourceType string  `json:"source_type"`
	Score      float64 `json:"score"`
}

// Answer is the generation result.
type Answer struct {
	Answer             string     `json:"answer"`
	Sources            []Citation `json:"sources"`
	ContextDocsUsed    int        `json:"context_docs_used"`
	TotalDocsRetrieved int        `json:"total_docs_retrieved"`
	TokensPrompt       int        `json:"tokens_prompt"`
	TokensAnswer       int        `json:"tokens_answer"`
}

// LLM generates text from a prompt. Implementations must honor ctx
// deadlines.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
	Available(ctx context.Context) bool
	Close() error
}

// SourceTypeForTier maps a retrieval tier to its source type label.
func SourceTypeForTier(tier int) string {
	switch tier {
	case 2:
		return SourceTypeWebKB
	case 3:
		return SourceTypeWeb
	default:
		return SourceTypeLocal
	}
}
