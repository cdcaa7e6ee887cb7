package gen

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/archrag/internal/config"
)

// NewLLMFromConfig builds the configured generation backend. API keys for
// the hosted backends are shared with the premium embedding configuration.
func NewLLMFromConfig(ctx context.Context, cfg *config.Config) (LLM, error) {
	gc := cfg.Generation
	switch gc.Backend {
	case "", "ollama":
		host := gc.OllamaHost
		if host == "" {
			host = cfg.Embedding.OllamaHost
		}
		return NewOllamaLLM(OllamaLLMConfig{
			Host:        host,
			Model:       gc.Model,
			Temperature: gc.Temperature,
			MaxTokens:   gc.MaxOutputTokens,
			Timeout:     gc.TimeoutDuration(),
		}), nil
	case "gemini":
		return NewGeminiLLM(ctx, cfg.Embedding.Gemini.APIKey, gc.Model, gc.Temperature, gc.MaxOutputTokens)
	case "openai":
		return NewOpenAILLM(cfg.Embedding.OpenAI.APIKey, cfg.Embedding.OpenAI.BaseURL, gc.Model, gc.Temperature, gc.MaxOutputTokens)
	default:
		return nil, fmt.Errorf("unknown generation backend %q", gc.Backend)
	}
}
