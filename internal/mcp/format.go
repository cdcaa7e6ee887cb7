package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/archrag/internal/rag"
)

// FormatAnswer renders a query response as markdown with a citation
// list.
func FormatAnswer(query string, resp *rag.QueryResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Answer for \"%s\"\n\n", query))
	sb.WriteString(resp.Answer)
	sb.WriteString("\n")

	if len(resp.Sources) > 0 {
		sb.WriteString("\n### Sources\n\n")
		for _, c := range resp.Sources {
			sb.WriteString(fmt.Sprintf("%d. `%s`", c.DocIndex, c.SourcePath))
			if c.SourceType != "" && c.SourceType != "local" {
				sb.WriteString(fmt.Sprintf(" (%s)", c.SourceType))
			}
			sb.WriteString("\n")
		}
	}

	var notes []string
	if resp.CacheHit {
		notes = append(notes, "cached answer")
	}
	if resp.RetrievalStats.WebConsulted {
		notes = append(notes, "web consulted")
	}
	if len(notes) > 0 {
		sb.WriteString(fmt.Sprintf("\n_%s_\n", strings.Join(notes, ", ")))
	}

	return sb.String()
}

// FormatIngest renders an ingestion summary as markdown.
func FormatIngest(path string, stats *rag.IngestStats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Ingested `%s`\n\n", path))
	sb.WriteString(fmt.Sprintf("- Files processed: %d\n", stats.FilesProcessed))
	sb.WriteString(fmt.Sprintf("- Chunks indexed: %d\n", stats.TotalChunks))
	sb.WriteString(fmt.Sprintf("- New: %d, changed: %d, unchanged: %d\n",
		stats.New, stats.Changed, stats.Unchanged))
	if stats.Failed > 0 {
		sb.WriteString(fmt.Sprintf("- Failed: %d\n", stats.Failed))
		for _, e := range stats.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", e))
		}
	}
	return sb.String()
}

// FormatStats renders the library statistics as markdown.
func FormatStats(stats *rag.SystemStats) string {
	var sb strings.Builder
	sb.WriteString("## Library Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- Documents: %d\n", stats.Catalog.DocumentCount))
	sb.WriteString(fmt.Sprintf("- Chunks: %d\n", stats.Catalog.ChunkCount))
	sb.WriteString(fmt.Sprintf("- Vector points: %d (%d dims)\n",
		stats.Vector.PointCount, stats.Vector.VectorSize))
	sb.WriteString(fmt.Sprintf("- Keyword documents: %d\n", stats.Keyword))
	sb.WriteString(fmt.Sprintf("- Local embedder: %s\n", stats.Embedding.LocalModel))
	if len(stats.Embedding.Premium) > 0 {
		sb.WriteString(fmt.Sprintf("- Premium embedders: %s\n",
			strings.Join(stats.Embedding.Premium, ", ")))
	}
	if stats.WebKB != nil {
		sb.WriteString(fmt.Sprintf("- Web knowledge base: %d documents\n", stats.WebKB.DocumentCount))
	}
	sb.WriteString(fmt.Sprintf("- Cache enabled: %t\n", stats.Cache.Enabled))
	if stats.Queries != nil {
		sb.WriteString(fmt.Sprintf("- Queries served: %d\n", stats.Queries.QueryCount))
	}
	return sb.String()
}
