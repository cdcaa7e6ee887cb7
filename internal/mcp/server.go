package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/archrag/internal/rag"
	"github.com/Aman-CERP/archrag/internal/validation"
	"github.com/Aman-CERP/archrag/pkg/version"
)

// Service is the orchestrator surface the tools need.
type Service interface {
	IngestDocument(ctx context.Context, path string, force bool) (int, error)
	IngestDirectory(ctx context.Context, root, pattern string, force bool) (*rag.IngestStats, error)
	Query(ctx context.Context, req *rag.QueryRequest) (*rag.QueryResponse, error)
	Stats(ctx context.Context) (*rag.SystemStats, error)
}

// QueryInput is the query_documents tool input.
type QueryInput struct {
	Query           string `json:"query" jsonschema:"the question to answer from the document library"`
	TopK            int    `json:"top_k,omitempty" jsonschema:"number of context documents to retrieve, default 10"`
	UseCache        *bool  `json:"use_cache,omitempty" jsonschema:"consult the semantic answer cache, default true"`
	EnableWebSearch bool   `json:"enable_web_search,omitempty" jsonschema:"allow live web search when local results are weak"`
}

// QueryOutput is the query_documents structured result.
type QueryOutput struct {
	Answer   string         `json:"answer" jsonschema:"the generated answer with [Doc N] citations"`
	Sources  []SourceOutput `json:"sources" jsonschema:"documents the answer cites"`
	CacheHit bool           `json:"cache_hit" jsonschema:"true when the answer came from the semantic cache"`
}

// SourceOutput is one cited document.
type SourceOutput struct {
	DocIndex   int     `json:"doc_index"`
	SourcePath string  `json:"source_path"`
	SourceType string  `json:"source_type,omitempty"`
	Score      float64 `json:"score"`
}

// IngestInput is the ingest_documents tool input.
type IngestInput struct {
	Path    string `json:"path" jsonschema:"file or directory to ingest"`
	Pattern string `json:"pattern,omitempty" jsonschema:"glob for directory ingestion, default **/*.md"`
	Force   bool   `json:"force,omitempty" jsonschema:"re-ingest files even when unchanged"`
}

// IngestOutput is the ingest_documents structured result.
type IngestOutput struct {
	FilesProcessed int `json:"files_processed"`
	TotalChunks    int `json:"total_chunks"`
	Failed         int `json:"failed"`
}

// StatsInput is the library_stats tool input (no parameters).
type StatsInput struct{}

// Server bridges agent clients to the document library over MCP.
type Server struct {
	mcp *mcp.Server
	svc Service
	log *slog.Logger
}

// NewServer creates the MCP server and registers the tools.
func NewServer(svc Service, log *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{svc: svc, log: log}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "ArchRAG", Version: version.Version},
		nil,
	)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "query_documents",
		Description: "Answer a question from the indexed technical document library. " +
			"Returns a cited answer grounded in local documents, with optional web augmentation.",
	}, s.handleQuery)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "ingest_documents",
		Description: "Index a file or directory of technical documents (markdown, PDF, text) " +
			"into the library. Unchanged files are skipped.",
	}, s.handleIngest)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "library_stats",
		Description: "Report library statistics: document and chunk counts, index sizes, " +
			"active embedding models, and query telemetry.",
	}, s.handleStats)

	s.log.Debug("mcp_tools_registered", slog.Int("count", 3))
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if err := validation.Query(input.Query); err != nil {
		return nil, QueryOutput{}, MapError(err)
	}
	if err := validation.TopK(input.TopK); err != nil {
		return nil, QueryOutput{}, MapError(err)
	}

	start := time.Now()
	resp, err := s.svc.Query(ctx, &rag.QueryRequest{
		Query:     input.Query,
		TopK:      input.TopK,
		UseCache:  input.UseCache == nil || *input.UseCache,
		EnableWeb: input.EnableWebSearch,
	})
	if err != nil {
		s.log.Error("query_documents_failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, QueryOutput{}, MapError(err)
	}

	s.log.Info("query_documents_completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("sources", len(resp.Sources)),
		slog.Bool("cache_hit", resp.CacheHit))

	output := QueryOutput{Answer: resp.Answer, CacheHit: resp.CacheHit}
	for _, c := range resp.Sources {
		output.Sources = append(output.Sources, SourceOutput{
			DocIndex:   c.DocIndex,
			SourcePath: c.SourcePath,
			SourceType: c.SourceType,
			Score:      c.Score,
		})
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatAnswer(input.Query, resp)}},
	}
	return result, output, nil
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (
	*mcp.CallToolResult,
	IngestOutput,
	error,
) {
	if err := validation.Path(input.Path); err != nil {
		return nil, IngestOutput{}, MapError(err)
	}

	info, err := os.Stat(input.Path)
	if err != nil {
		return nil, IngestOutput{}, &MCPError{
			Code:    ErrCodeFileNotFound,
			Message: fmt.Sprintf("path not found: %s", input.Path),
		}
	}

	var stats *rag.IngestStats
	if info.IsDir() {
		stats, err = s.svc.IngestDirectory(ctx, input.Path, input.Pattern, input.Force)
		if err != nil {
			return nil, IngestOutput{}, MapError(err)
		}
	} else {
		n, err := s.svc.IngestDocument(ctx, input.Path, input.Force)
		if err != nil {
			return nil, IngestOutput{}, MapError(err)
		}
		stats = &rag.IngestStats{FilesProcessed: 1, TotalChunks: n}
	}

	s.log.Info("ingest_documents_completed",
		slog.String("path", input.Path),
		slog.Int("files", stats.FilesProcessed),
		slog.Int("chunks", stats.TotalChunks))

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatIngest(input.Path, stats)}},
	}
	return result, IngestOutput{
		FilesProcessed: stats.FilesProcessed,
		TotalChunks:    stats.TotalChunks,
		Failed:         stats.Failed,
	}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	*rag.SystemStats,
	error,
) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatStats(stats)}},
	}
	return result, stats, nil
}

// Serve runs the server on stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.log.Info("mcp_server_stopped")
	return nil
}
