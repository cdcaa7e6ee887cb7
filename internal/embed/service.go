package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

// Service is the embedding service. Documents always go through the local
// model; queries can be embedded by a premium backend and aligned into
// local space. Premium backends are registered eagerly at startup.
type Service struct {
	local   Model
	log     *slog.Logger
	mu      sync.RWMutex
	premium map[Backend]Model
	align   map[Backend]*Alignment
	closed  bool
}

var _ Embedder = (*Service)(nil)

// NewService creates the embedding service around a local model.
func NewService(local Model, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		local:   local,
		log:     log,
		premium: make(map[Backend]Model),
		align:   make(map[Backend]*Alignment),
	}
}

// RegisterPremium attaches a premium backend. alignment may be nil when no
// matrix has been fit yet; queries then fall back to the local model.
func (s *Service) RegisterPremium(backend Backend, model Model, alignment *Alignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premium[backend] = model
	if alignment != nil {
		s.align[backend] = alignment
	}
}

// PremiumModel returns the registered model for a backend, if any.
func (s *Service) PremiumModel(backend Backend) (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.premium[backend]
	return m, ok
}

// HasAlignment reports whether a backend has a loaded alignment matrix.
func (s *Service) HasAlignment(backend Backend) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.align[backend]
	return ok
}

// Local returns the local model.
func (s *Service) Local() Model {
	return s.local
}

// EmbedDocuments embeds chunk texts in local space.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return s.local.EmbedBatch(ctx, texts)
}

// EmbedQuery embeds a query for index search. A premium backend with a
// loaded alignment matrix produces a premium embedding mapped into local
// space; anything else uses the local model, with a warning when the
// premium path was requested but unavailable.
func (s *Service) EmbedQuery(ctx context.Context, text string, backend Backend) ([]float32, error) {
	if backend == "" || backend == BackendOllama {
		return s.local.Embed(ctx, text)
	}

	s.mu.RLock()
	model, hasModel := s.premium[backend]
	alignment, hasAlign := s.align[backend]
	s.mu.RUnlock()

	if !hasModel {
		s.log.Warn("premium_backend_not_configured",
			slog.String("backend", string(backend)))
		return s.local.Embed(ctx, text)
	}
	if !hasAlign {
		s.log.Warn("alignment_matrix_missing",
			slog.String("backend", string(backend)),
			slog.String("fallback", "local_model"))
		return s.local.Embed(ctx, text)
	}

	premiumVec, err := model.Embed(ctx, text)
	if err != nil {
		s.log.Warn("premium_embedding_failed",
			slog.String("backend", string(backend)),
			slog.String("error", err.Error()))
		return s.local.Embed(ctx, text)
	}

	localVec, err := alignment.Apply(premiumVec)
	if err != nil {
		s.log.Warn("alignment_apply_failed",
			slog.String("backend", string(backend)),
			slog.String("error", err.Error()))
		return s.local.Embed(ctx, text)
	}
	return localVec, nil
}

// ReEmbed embeds candidate texts and the query in the premium backend's
// own space for re-ranking. No alignment is applied; the caller compares
// within premium space.
func (s *Service) ReEmbed(ctx context.Context, texts []string, query string, backend Backend) ([][]float32, []float32, error) {
	s.mu.RLock()
	model, ok := s.premium[backend]
	s.mu.RUnlock()

	if backend == "" || backend == BackendOllama {
		model = s.local
		ok = true
	}
	if !ok {
		return nil, nil, ragerr.New(ragerr.ErrCodePremiumEmbedFailed,
			fmt.Sprintf("premium backend %s is not configured", backend), nil)
	}

	docVecs, err := model.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, ragerr.New(ragerr.ErrCodePremiumEmbedFailed,
			fmt.Sprintf("re-embedding %d candidates failed", len(texts)), err)
	}

	queryVec, err := model.Embed(ctx, query)
	if err != nil {
		return nil, nil, ragerr.New(ragerr.ErrCodePremiumEmbedFailed,
			"re-embedding query failed", err)
	}

	return docVecs, queryVec, nil
}

// Dimensions returns the local embedding dimension.
func (s *Service) Dimensions() int {
	return s.local.Dimensions()
}

// Close shuts down the local model and every premium backend.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.local.Close(); err != nil {
		firstErr = err
	}
	for backend, model := range s.premium {
		if err := model.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s backend: %w", backend, err)
		}
	}
	return firstErr
}
