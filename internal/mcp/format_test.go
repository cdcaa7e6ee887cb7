package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/archrag/internal/gen"
	"github.com/Aman-CERP/archrag/internal/rag"
	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/telemetry"
	"github.com/Aman-CERP/archrag/internal/webkb"
)

func TestFormatAnswer(t *testing.T) {
	resp := &rag.QueryResponse{
		Answer: "Search descends the layers greedily [Doc 1], then widens at layer 0 [Doc 2].",
		Sources: []gen.Citation{
			{DocIndex: 1, SourcePath: "/docs/hnsw.md"},
			{DocIndex: 2, SourcePath: "https://example.com/annoy", SourceType: "web"},
		},
	}

	md := FormatAnswer("how does search work", resp)
	assert.Contains(t, md, "## Answer for \"how does search work\"")
	assert.Contains(t, md, "1. `/docs/hnsw.md`")
	assert.Contains(t, md, "2. `https://example.com/annoy` (web)")
	assert.NotContains(t, md, "cached answer")
}

func TestFormatAnswer_Annotations(t *testing.T) {
	resp := &rag.QueryResponse{
		Answer:         "Cached.",
		CacheHit:       true,
		RetrievalStats: search.Stats{WebConsulted: true},
	}

	md := FormatAnswer("q", resp)
	assert.Contains(t, md, "cached answer")
	assert.Contains(t, md, "web consulted")
}

func TestFormatIngest(t *testing.T) {
	md := FormatIngest("/docs", &rag.IngestStats{
		FilesProcessed: 5,
		TotalChunks:    40,
		New:            3,
		Changed:        1,
		Unchanged:      1,
		Failed:         1,
		Errors:         []string{"/docs/broken.pdf: extract failed"},
	})

	assert.Contains(t, md, "## Ingested `/docs`")
	assert.Contains(t, md, "Files processed: 5")
	assert.Contains(t, md, "New: 3, changed: 1, unchanged: 1")
	assert.Contains(t, md, "broken.pdf")
}

func TestFormatStats(t *testing.T) {
	md := FormatStats(&rag.SystemStats{
		Vector:  store.VectorInfo{PointCount: 120, VectorSize: 768},
		Keyword: 120,
		Catalog: store.CatalogStats{DocumentCount: 9, ChunkCount: 120},
		Embedding: rag.EmbeddingStats{
			LocalModel: "nomic-embed-text",
			Premium:    []string{"gemini"},
		},
		WebKB:   &webkb.Stats{DocumentCount: 4},
		Cache:   rag.CacheStats{Enabled: true},
		Queries: &telemetry.Aggregates{QueryCount: 31},
	})

	assert.Contains(t, md, "Documents: 9")
	assert.Contains(t, md, "Vector points: 120 (768 dims)")
	assert.Contains(t, md, "Premium embedders: gemini")
	assert.Contains(t, md, "Web knowledge base: 4 documents")
	assert.Contains(t, md, "Queries served: 31")
}
