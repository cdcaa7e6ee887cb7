package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/archrag/internal/config"
)

// NewServiceFromConfig builds the embedding service: the local model, an
// optional LRU wrapper, and every enabled premium backend with its
// alignment matrix. Premium backends are created eagerly so a
// misconfiguration surfaces at startup, not on the first query.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	local, err := newLocalModel(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Embedding.CacheSize > 0 {
		local = NewCachedModel(local, cfg.Embedding.CacheSize)
	}

	svc := NewService(local, log)

	if cfg.Embedding.Gemini.Enabled {
		model, err := NewGeminiModel(ctx, cfg.Embedding.Gemini.APIKey, cfg.Embedding.Gemini.Model)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to initialize gemini backend: %w", err)
		}
		alignment := loadAlignmentFor(BackendGemini, cfg.Embedding.Gemini.AlignmentMatrix, cfg.AlignmentDir(), log)
		svc.RegisterPremium(BackendGemini, model, alignment)
	}

	if cfg.Embedding.OpenAI.Enabled {
		model, err := NewOpenAIModel(cfg.Embedding.OpenAI.APIKey, cfg.Embedding.OpenAI.BaseURL, cfg.Embedding.OpenAI.Model)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to initialize openai backend: %w", err)
		}
		alignment := loadAlignmentFor(BackendOpenAI, cfg.Embedding.OpenAI.AlignmentMatrix, cfg.AlignmentDir(), log)
		svc.RegisterPremium(BackendOpenAI, model, alignment)
	}

	return svc, nil
}

// newLocalModel picks the local embedder. An empty backend auto-detects:
// Ollama when reachable, otherwise the static fallback with a warning.
func newLocalModel(ctx context.Context, cfg *config.Config, log *slog.Logger) (Model, error) {
	ollamaCfg := DefaultOllamaConfig()
	if cfg.Embedding.OllamaHost != "" {
		ollamaCfg.Host = cfg.Embedding.OllamaHost
	}
	if cfg.Embedding.Model != "" {
		ollamaCfg.Model = cfg.Embedding.Model
	}
	if cfg.Embedding.Dimensions > 0 {
		ollamaCfg.Dimensions = cfg.Embedding.Dimensions
	}
	if cfg.Embedding.BatchSize > 0 {
		ollamaCfg.BatchSize = cfg.Embedding.BatchSize
	}

	switch cfg.Embedding.Backend {
	case "static":
		return NewStaticModel(), nil
	case "ollama":
		return NewOllamaModel(ctx, ollamaCfg)
	case "":
		model, err := NewOllamaModel(ctx, ollamaCfg)
		if err != nil {
			log.Warn("ollama_unavailable",
				slog.String("host", ollamaCfg.Host),
				slog.String("fallback", "static"),
				slog.String("error", err.Error()))
			return NewStaticModel(), nil
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unknown local embedding backend %q", cfg.Embedding.Backend)
	}
}

// loadAlignmentFor loads a backend's alignment matrix from the configured
// path or the default location. A missing matrix is not fatal: queries for
// that backend fall back to the local model until `archrag align` runs.
func loadAlignmentFor(backend Backend, configuredPath, alignDir string, log *slog.Logger) *Alignment {
	path := configuredPath
	if path == "" {
		path = DefaultAlignmentPath(alignDir, backend)
	}

	if _, err := os.Stat(path); err != nil {
		log.Warn("alignment_matrix_not_found",
			slog.String("backend", string(backend)),
			slog.String("path", path))
		return nil
	}

	alignment, err := LoadAlignment(path)
	if err != nil {
		log.Warn("alignment_matrix_load_failed",
			slog.String("backend", string(backend)),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}

	log.Info("alignment_matrix_loaded",
		slog.String("backend", string(backend)),
		slog.Int("premium_dims", alignment.InputDims()),
		slog.Int("local_dims", alignment.OutputDims()))
	return alignment
}

// DefaultAlignmentPath is the standard on-disk location for a backend's
// alignment matrix.
func DefaultAlignmentPath(alignDir string, backend Backend) string {
	return filepath.Join(alignDir, string(backend)+".matrix")
}
