package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

// DefaultSearchBaseURL is the DuckDuckGo HTML results endpoint.
const DefaultSearchBaseURL = "https://html.duckduckgo.com/html/"

const defaultUserAgent = "archrag/1.0 (+https://github.com/Aman-CERP/archrag)"

// SnippetProvider queries an HTML results page and parses titles,
// snippets, and target URLs. It returns snippets only; the
// ExtractorProvider layers full-article fetches on top.
type SnippetProvider struct {
	baseURL string
	client  *http.Client
	limiter *RateLimiter
	trust   TrustPolicy
	log     *slog.Logger
}

var _ Provider = (*SnippetProvider)(nil)

// SnippetConfig configures the snippet provider.
type SnippetConfig struct {
	BaseURL             string
	MaxQueriesPerMinute int
	Timeout             time.Duration
	Trust               TrustPolicy
}

// NewSnippetProvider creates the snippet provider.
func NewSnippetProvider(cfg SnippetConfig, log *slog.Logger) *SnippetProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSearchBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Trust.TrustedSuffixes) == 0 && len(cfg.Trust.BlockedSuffixes) == 0 {
		cfg.Trust = DefaultTrustPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &SnippetProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: NewRateLimiter(cfg.MaxQueriesPerMinute, time.Minute),
		trust:   cfg.Trust,
		log:     log,
	}
}

// Search fetches the results page and parses up to maxResults entries.
// Blocked domains are dropped.
func (p *SnippetProvider) Search(ctx context.Context, query string, maxResults int) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return []*Result{}, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, ragerr.New(ragerr.ErrCodeRateLimited, "web search rate limit exceeded", err)
	}

	reqURL := p.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeWebFetchFailed, "web search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ragerr.New(ragerr.ErrCodeWebFetchFailed,
			fmt.Sprintf("web search returned status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeWebFetchFailed, "failed to parse results page", err)
	}

	now := time.Now()
	results := make([]*Result, 0, maxResults)
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		domain := DomainOf(target)
		if domain == "" || p.trust.Blocked(domain) {
			return true
		}
		results = append(results, &Result{
			URL:        target,
			Domain:     domain,
			Title:      strings.TrimSpace(link.Text()),
			Snippet:    strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			TrustScore: p.trust.Score(domain),
			Method:     MethodSnippet,
			FetchedAt:  now,
		})
		return len(results) < maxResults
	})

	p.log.Debug("web_snippet_search",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}

// HealthCheck probes the search endpoint.
func (p *SnippetProvider) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// resolveRedirect unwraps DuckDuckGo-style redirect links, which carry
// the target in the uddg query parameter.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}
