// Package server exposes the library over HTTP: ingestion, querying,
// statistics, and health. Handlers are thin adapters over the rag
// orchestrator; all pipeline behavior lives there.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/archrag/internal/config"
	"github.com/Aman-CERP/archrag/internal/rag"
)

// Service is the orchestrator surface the HTTP handlers need.
type Service interface {
	IngestDocument(ctx context.Context, path string, force bool) (int, error)
	IngestDirectory(ctx context.Context, root, pattern string, force bool) (*rag.IngestStats, error)
	Query(ctx context.Context, req *rag.QueryRequest) (*rag.QueryResponse, error)
	Stats(ctx context.Context) (*rag.SystemStats, error)
	Health(ctx context.Context) *rag.HealthReport
}

// Server is the HTTP API server.
type Server struct {
	cfg    *config.Config
	svc    Service
	log    *slog.Logger
	engine *gin.Engine
}

// New creates the server and registers routes and middleware.
func New(cfg *config.Config, svc Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(requestID())
	engine.Use(requestLogger(log))
	engine.Use(recovery(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	engine.Use(cors.New(corsConfig))

	s := &Server{cfg: cfg, svc: svc, log: log, engine: engine}

	engine.POST("/ingest", s.handleIngest)
	engine.POST("/query", s.handleQuery)
	engine.GET("/stats", s.handleStats)
	engine.GET("/health", s.handleHealth)

	return s
}

// Handler returns the underlying HTTP handler. Tests mount this on
// httptest servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.Timeout(),
		WriteTimeout:      s.cfg.Server.Timeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server_listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
