package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/archrag/internal/embed"
	ragerr "github.com/Aman-CERP/archrag/internal/errors"
	"github.com/Aman-CERP/archrag/internal/rag"
	"github.com/Aman-CERP/archrag/internal/search"
	"github.com/Aman-CERP/archrag/internal/validation"
)

// errorBody is the JSON envelope for every failed request.
type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ingestRequest triggers ingestion of a directory or a single file.
type ingestRequest struct {
	DirectoryPath string `json:"directory_path"`
	FilePath      string `json:"file_path"`
	Pattern       string `json:"pattern"`
	ForceReingest bool   `json:"force_reingest"`
}

// ingestResponse reports the ingestion outcome.
type ingestResponse struct {
	Status         string           `json:"status"`
	FilesProcessed int              `json:"files_processed"`
	TotalChunks    int              `json:"total_chunks"`
	Message        string           `json:"message"`
	Stats          *rag.IngestStats `json:"stats,omitempty"`
}

// queryRequest is the POST /query body.
type queryRequest struct {
	Query             string `json:"query"`
	TopK              int    `json:"top_k"`
	UseCache          *bool  `json:"use_cache"`
	UserContext       string `json:"user_context"`
	QueryEmbedderType string `json:"query_embedder_type"`
	EnableWebSearch   bool   `json:"enable_web_search"`
	WebMode           string `json:"web_mode"`
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, ragerr.ErrCodeInvalidInput, "malformed request body")
		return
	}
	if req.DirectoryPath == "" && req.FilePath == "" {
		writeError(c, http.StatusBadRequest, ragerr.ErrCodeInvalidInput,
			"one of directory_path or file_path is required")
		return
	}
	if req.DirectoryPath != "" && req.FilePath != "" {
		writeError(c, http.StatusBadRequest, ragerr.ErrCodeInvalidInput,
			"directory_path and file_path are mutually exclusive")
		return
	}
	if err := validation.Pattern(req.Pattern); err != nil {
		writeServiceError(c, err)
		return
	}

	ctx := c.Request.Context()

	if req.FilePath != "" {
		n, err := s.svc.IngestDocument(ctx, req.FilePath, req.ForceReingest)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, ingestResponse{
			Status:         "ok",
			FilesProcessed: 1,
			TotalChunks:    n,
			Message:        fmt.Sprintf("ingested %s (%d chunks)", req.FilePath, n),
		})
		return
	}

	if err := validation.Directory(req.DirectoryPath); err != nil {
		writeServiceError(c, err)
		return
	}

	stats, err := s.svc.IngestDirectory(ctx, req.DirectoryPath, req.Pattern, req.ForceReingest)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := "ok"
	if stats.Failed > 0 {
		status = "partial"
	}
	c.JSON(http.StatusOK, ingestResponse{
		Status:         status,
		FilesProcessed: stats.FilesProcessed,
		TotalChunks:    stats.TotalChunks,
		Message: fmt.Sprintf("%d new, %d changed, %d unchanged, %d failed",
			stats.New, stats.Changed, stats.Unchanged, stats.Failed),
		Stats: stats,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, ragerr.ErrCodeInvalidInput, "malformed request body")
		return
	}
	if err := validation.Query(req.Query); err != nil {
		writeServiceError(c, err)
		return
	}
	if err := validation.TopK(req.TopK); err != nil {
		writeServiceError(c, err)
		return
	}

	backend, ok := parseBackend(req.QueryEmbedderType)
	if !ok {
		writeError(c, http.StatusBadRequest, ragerr.ErrCodeInvalidInput,
			fmt.Sprintf("unknown query_embedder_type: %s", req.QueryEmbedderType))
		return
	}
	webMode, ok := parseWebMode(req.WebMode)
	if !ok {
		writeError(c, http.StatusBadRequest, ragerr.ErrCodeInvalidInput,
			fmt.Sprintf("unknown web_mode: %s", req.WebMode))
		return
	}

	// Caching defaults on; an explicit false disables it.
	useCache := req.UseCache == nil || *req.UseCache

	resp, err := s.svc.Query(c.Request.Context(), &rag.QueryRequest{
		Query:     req.Query,
		TopK:      req.TopK,
		UseCache:  useCache,
		Tenant:    req.UserContext,
		Backend:   backend,
		EnableWeb: req.EnableWebSearch,
		WebMode:   webMode,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.svc.Stats(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	report := s.svc.Health(ctx)

	status := "healthy"
	code := http.StatusOK
	if !report.Healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":   status,
		"services": report.Services,
	}
	if stats, err := s.svc.Stats(ctx); err == nil {
		body["stats"] = stats
	}
	c.JSON(code, body)
}

func parseBackend(s string) (embed.Backend, bool) {
	switch s {
	case "", "ollama", "local":
		// The local model is the default; "ollama" names it explicitly.
		return "", true
	case "gemini":
		return embed.BackendGemini, true
	case "openai":
		return embed.BackendOpenAI, true
	default:
		return "", false
	}
}

func parseWebMode(s string) (search.WebMode, bool) {
	switch s {
	case "":
		return search.WebModeOnLowConfidence, true
	case string(search.WebModeParallel):
		return search.WebModeParallel, true
	case string(search.WebModeOnLowConfidence):
		return search.WebModeOnLowConfidence, true
	default:
		return "", false
	}
}

func writeError(c *gin.Context, httpStatus int, code, message string) {
	c.JSON(httpStatus, errorBody{Status: "error", Code: code, Message: message})
}

// writeServiceError maps pipeline errors onto HTTP statuses by their
// error code family.
func writeServiceError(c *gin.Context, err error) {
	var re *ragerr.RAGError
	if !errors.As(err, &re) {
		writeError(c, http.StatusInternalServerError, ragerr.ErrCodeInternal, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch re.Code {
	case ragerr.ErrCodeFileNotFound:
		status = http.StatusNotFound
	case ragerr.ErrCodeInvalidInput, ragerr.ErrCodeInvalidPath,
		ragerr.ErrCodeInvalidQuery, ragerr.ErrCodeQueryEmpty,
		ragerr.ErrCodeQueryTooLong, ragerr.ErrCodeFileTooLarge,
		ragerr.ErrCodeUnsupportedFormat:
		status = http.StatusBadRequest
	case ragerr.ErrCodeFilePermission:
		status = http.StatusForbidden
	case ragerr.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	}
	writeError(c, status, re.Code, re.Message)
}
