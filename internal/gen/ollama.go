package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaModel is the default local generation model.
const DefaultOllamaModel = "llama3.2"

const defaultGenerateTimeout = 120 * time.Second

// OllamaLLM generates answers through the local Ollama /api/generate
// endpoint, non-streaming.
type OllamaLLM struct {
	host        string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

var _ LLM = (*OllamaLLM)(nil)

// OllamaLLMConfig configures the Ollama generation backend.
type OllamaLLMConfig struct {
	Host        string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewOllamaLLM creates the Ollama backend.
func NewOllamaLLM(cfg OllamaLLMConfig) *OllamaLLM {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenerateTimeout
	}
	return &OllamaLLM{
		host:        strings.TrimRight(cfg.Host, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate runs one non-streaming completion.
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	options := map[string]any{"temperature": o.temperature}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate returned status %d", resp.StatusCode)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama generate error: %s", out.Error)
	}
	return strings.TrimSpace(out.Response), nil
}

// Name identifies the backend and model.
func (o *OllamaLLM) Name() string {
	return "ollama/" + o.model
}

// Available probes the Ollama server.
func (o *OllamaLLM) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (o *OllamaLLM) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
