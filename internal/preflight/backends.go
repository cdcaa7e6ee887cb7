package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aman-CERP/archrag/internal/gen"
)

const defaultOllamaHost = "http://localhost:11434"

// CheckEmbedder probes the local embedding backend. Ollama being down is
// a warning, not a failure: ingestion falls back to the static embedder.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{Name: "embedder", Required: false}

	if c.cfg.Embedding.Backend == "static" {
		result.Status = StatusPass
		result.Message = "static embedder (no external dependency)"
		return result
	}

	host := c.cfg.Embedding.OllamaHost
	if host == "" {
		host = defaultOllamaHost
	}

	models, err := c.ollamaModels(ctx, host)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Ollama unreachable at %s (static fallback active)", host)
		result.Details = err.Error()
		return result
	}

	model := c.cfg.Embedding.Model
	if model != "" && !hasModel(models, model) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("model %s not pulled", model)
		result.Details = fmt.Sprintf("Run 'ollama pull %s'", model)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("Ollama reachable at %s (%d models)", host, len(models))
	return result
}

func (c *Checker) ollamaModels(ctx context.Context, host string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(host, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	names := make([]string, len(payload.Models))
	for i, m := range payload.Models {
		names[i] = m.Name
	}
	return names, nil
}

// hasModel matches with or without the tag suffix, so "llama3.2" finds
// "llama3.2:latest".
func hasModel(models []string, want string) bool {
	for _, m := range models {
		if m == want || strings.SplitN(m, ":", 2)[0] == want {
			return true
		}
	}
	return false
}

// CheckCache pings the semantic cache. An unreachable cache degrades
// latency only, so this never fails hard.
func (c *Checker) CheckCache(ctx context.Context) CheckResult {
	result := CheckResult{Name: "cache", Required: false}

	if !c.cfg.Cache.IsEnabled() {
		result.Status = StatusPass
		result.Message = "disabled"
		return result
	}

	host := c.cfg.Cache.Host
	if host == "" {
		host = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:        host,
		Password:    c.cfg.Cache.Password,
		DB:          c.cfg.Cache.DB,
		DialTimeout: 2 * time.Second,
	})
	defer func() { _ = client.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Redis unreachable at %s (queries run uncached)", host)
		result.Details = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("Redis reachable at %s", host)
	return result
}

// CheckLLM verifies the generation backend answers its health probe.
func (c *Checker) CheckLLM(ctx context.Context) CheckResult {
	result := CheckResult{Name: "llm", Required: false}

	llm, err := gen.NewLLMFromConfig(ctx, c.cfg)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "generation backend not configured"
		result.Details = err.Error()
		return result
	}
	defer func() { _ = llm.Close() }()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !llm.Available(probeCtx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s not responding (queries return an apology)", llm.Name())
		return result
	}

	result.Status = StatusPass
	result.Message = llm.Name()
	return result
}
