package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

// ExtractorProvider is the primary web provider. A URL query fetches and
// extracts that page; a plain-text query goes through the snippet
// provider for candidate URLs, each extracted in full, with the snippet
// as fallback when extraction fails. URLs failing both are excluded.
type ExtractorProvider struct {
	snippets *SnippetProvider
	client   *http.Client
	trust    TrustPolicy
	timeout  time.Duration
	log      *slog.Logger
}

var _ Provider = (*ExtractorProvider)(nil)

// ExtractorConfig configures the extractor provider.
type ExtractorConfig struct {
	Snippet      SnippetConfig
	FetchTimeout time.Duration
}

// NewExtractorProvider creates the extractor provider with its own
// snippet provider underneath.
func NewExtractorProvider(cfg ExtractorConfig, log *slog.Logger) *ExtractorProvider {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	snippets := NewSnippetProvider(cfg.Snippet, log)
	return &ExtractorProvider{
		snippets: snippets,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		trust:    snippets.trust,
		timeout:  cfg.FetchTimeout,
		log:      log,
	}
}

// Search resolves the query to full-text results.
func (p *ExtractorProvider) Search(ctx context.Context, query string, maxResults int) ([]*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*Result{}, nil
	}

	if isURL(query) {
		result, err := p.extractURL(ctx, query)
		if err != nil {
			return nil, err
		}
		return []*Result{result}, nil
	}

	candidates, err := p.snippets.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(candidates))
	for _, candidate := range candidates {
		extracted, err := p.extractURL(ctx, candidate.URL)
		if err != nil {
			if candidate.Snippet != "" {
				// Snippet fallback keeps the URL in play
				p.log.Debug("web_extract_fallback_snippet",
					slog.String("url", candidate.URL),
					slog.String("error", err.Error()))
				results = append(results, candidate)
			} else {
				p.log.Warn("web_extract_excluded",
					slog.String("url", candidate.URL),
					slog.String("error", err.Error()))
			}
			continue
		}
		if extracted.Title == "" {
			extracted.Title = candidate.Title
		}
		extracted.Snippet = candidate.Snippet
		results = append(results, extracted)
	}
	return results, nil
}

// HealthCheck probes the underlying search endpoint.
func (p *ExtractorProvider) HealthCheck(ctx context.Context) bool {
	return p.snippets.HealthCheck(ctx)
}

// extractURL fetches one page and extracts the main article content.
func (p *ExtractorProvider) extractURL(ctx context.Context, rawURL string) (*Result, error) {
	domain := DomainOf(rawURL)
	if domain == "" {
		return nil, ragerr.New(ragerr.ErrCodeInvalidInput, "invalid url: "+rawURL, nil)
	}
	if p.trust.Blocked(domain) {
		return nil, ragerr.New(ragerr.ErrCodeInvalidInput, "blocked domain: "+domain, nil)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeWebFetchFailed, "fetch failed: "+rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ragerr.New(ragerr.ErrCodeWebFetchFailed,
			fmt.Sprintf("fetch returned status %d: %s", resp.StatusCode, rawURL), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeWebFetchFailed, "html parse failed: "+rawURL, err)
	}

	text := extractArticle(doc)
	if strings.TrimSpace(text) == "" {
		return nil, ragerr.New(ragerr.ErrCodeWebFetchFailed, "no extractable content: "+rawURL, nil)
	}

	return &Result{
		URL:        rawURL,
		Domain:     domain,
		Title:      extractTitle(doc),
		FullText:   text,
		Author:     metaContent(doc, `meta[name="author"]`),
		Published:  publishedDate(doc),
		TrustScore: p.trust.Score(domain),
		Method:     MethodArticle,
		FetchedAt:  time.Now(),
	}, nil
}

// extractArticle walks content elements and renders markdown-ish text.
func extractArticle(doc *goquery.Document) string {
	var out []string
	doc.Find("h1,h2,h3,h4,p,li,pre,table").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+text)
		case "h2":
			out = append(out, "## "+text)
		case "h3":
			out = append(out, "### "+text)
		case "h4":
			out = append(out, "#### "+text)
		case "li":
			out = append(out, "- "+text)
		case "pre":
			out = append(out, "```\n"+text+"\n```")
		case "table":
			if rows := renderTable(s); rows != "" {
				out = append(out, rows)
			}
		default:
			out = append(out, text)
		}
	})
	return strings.Join(out, "\n\n")
}

// renderTable flattens a table into pipe-delimited rows.
func renderTable(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th,td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func publishedDate(doc *goquery.Document) string {
	if d := metaContent(doc, `meta[property="article:published_time"]`); d != "" {
		return d
	}
	return metaContent(doc, `meta[name="date"]`)
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
