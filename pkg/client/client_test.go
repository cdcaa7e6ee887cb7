package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "how does hnsw work", body["query"])
		assert.Equal(t, float64(5), body["top_k"])

		_, _ = w.Write([]byte(`{"answer":"Layered graphs [Doc 1].","cache_hit":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Query(context.Background(), &QueryRequest{Query: "how does hnsw work", TopK: 5})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "[Doc 1]")
	assert.True(t, resp.CacheHit)
}

func TestIngest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ingest", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","files_processed":3,"total_chunks":12}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/") // trailing slash is trimmed
	resp, err := c.Ingest(context.Background(), &IngestRequest{DirectoryPath: "/docs"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 12, resp.TotalChunks)
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"vector":{"point_count":42,"vector_size":768,"orphans":0}}`))
	}))
	defer srv.Close()

	stats, err := New(srv.URL).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, stats.Vector.PointCount)
}

func TestHealth_UnhealthyStillDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","services":{"llm":{"status":"down"}}}`))
	}))
	defer srv.Close()

	health, err := New(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "down", health.Services["llm"].Status)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","code":"ERR_404_QUERY_EMPTY","message":"query must not be empty"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Query(context.Background(), &QueryRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "ERR_404_QUERY_EMPTY", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "query must not be empty")
}

func TestAPIError_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Stats(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}
