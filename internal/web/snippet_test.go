package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultsPage(entries ...[3]string) string {
	page := "<html><body>"
	for _, e := range entries {
		page += fmt.Sprintf(
			`<div class="result"><a class="result__a" href=%q>%s</a><a class="result__snippet">%s</a></div>`,
			e[0], e[1], e[2])
	}
	return page + "</body></html>"
}

func newTestSnippetProvider(t *testing.T, handler http.HandlerFunc) (*SnippetProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewSnippetProvider(SnippetConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, nil)
	return p, srv
}

func TestSnippetProvider_Search(t *testing.T) {
	var gotQuery string
	p, _ := newTestSnippetProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, resultsPage(
			[3]string{"https://docs.example.org/hnsw", "HNSW Guide", "Approximate nearest neighbor search"},
			[3]string{"https://blog.example.com/ann", "ANN Post", "Vector indexes explained"},
		))
	})

	results, err := p.Search(context.Background(), "hnsw search", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "hnsw search", gotQuery)
	assert.Equal(t, "https://docs.example.org/hnsw", results[0].URL)
	assert.Equal(t, "docs.example.org", results[0].Domain)
	assert.Equal(t, "HNSW Guide", results[0].Title)
	assert.Equal(t, "Approximate nearest neighbor search", results[0].Snippet)
	assert.Equal(t, MethodSnippet, results[0].Method)

	// .org is trusted, .com is neutral
	assert.Equal(t, 0.9, results[0].TrustScore)
	assert.Equal(t, 0.5, results[1].TrustScore)
}

func TestSnippetProvider_ResolvesRedirectLinks(t *testing.T) {
	target := "https://target.example.com/article"
	redirect := "//duckduckgo.com/l/?uddg=" + url.QueryEscape(target)
	p, _ := newTestSnippetProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage([3]string{redirect, "Article", "snippet"}))
	})

	results, err := p.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, target, results[0].URL)
}

func TestSnippetProvider_MaxResults(t *testing.T) {
	p, _ := newTestSnippetProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage(
			[3]string{"https://a.example.com/1", "One", "s"},
			[3]string{"https://b.example.com/2", "Two", "s"},
			[3]string{"https://c.example.com/3", "Three", "s"},
		))
	})

	results, err := p.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSnippetProvider_DropsBlockedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage(
			[3]string{"https://spam.example/x", "Spam", "s"},
			[3]string{"https://good.example.com/y", "Good", "s"},
		))
	}))
	defer srv.Close()

	p := NewSnippetProvider(SnippetConfig{
		BaseURL: srv.URL,
		Trust:   TrustPolicy{BlockedSuffixes: []string{"spam.example"}},
	}, nil)

	results, err := p.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://good.example.com/y", results[0].URL)
}

func TestSnippetProvider_EmptyQuery(t *testing.T) {
	p, _ := newTestSnippetProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	results, err := p.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSnippetProvider_ServerError(t *testing.T) {
	p, _ := newTestSnippetProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	})

	_, err := p.Search(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestSnippetProvider_HealthCheck(t *testing.T) {
	p, _ := newTestSnippetProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.True(t, p.HealthCheck(context.Background()))

	down := NewSnippetProvider(SnippetConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	assert.False(t, down.HealthCheck(context.Background()))
}
