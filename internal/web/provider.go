// Package web implements live web search providers: snippet search over
// an HTML results endpoint and full-article extraction with domain trust
// scoring and rate limiting.
package web

import (
	"context"
	"time"
)

// Extraction methods recorded on results.
const (
	MethodSnippet = "snippet"
	MethodArticle = "article"
)

// Result is one fetched web result.
type Result struct {
	URL        string
	Domain     string
	Title      string
	Snippet    string
	FullText   string
	Author     string
	Published  string
	TrustScore float64
	Method     string
	FetchedAt  time.Time
}

// Text returns the best available content: full article text, else the
// snippet.
func (r *Result) Text() string {
	if r.FullText != "" {
		return r.FullText
	}
	return r.Snippet
}

// Provider searches the web. Implementations must respect ctx deadlines
// on every network call.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]*Result, error)
	HealthCheck(ctx context.Context) bool
}
