package gen

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the default Gemini generation model.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiLLM generates answers through the Gemini API.
type GeminiLLM struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string

	mu     sync.Mutex
	closed bool
}

var _ LLM = (*GeminiLLM)(nil)

// NewGeminiLLM creates the Gemini backend.
func NewGeminiLLM(ctx context.Context, apiKey, model string, temperature float64, maxTokens int) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	gm := client.GenerativeModel(model)
	gm.SetTemperature(float32(temperature))
	if maxTokens > 0 {
		gm.SetMaxOutputTokens(int32(maxTokens))
	}

	return &GeminiLLM{client: client, model: gm, name: model}, nil
}

// Generate runs one completion.
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return "", fmt.Errorf("gemini backend is closed")
	}
	g.mu.Unlock()

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// Name identifies the backend and model.
func (g *GeminiLLM) Name() string {
	return "gemini/" + g.name
}

// Available probes the API with a token count, the cheapest call.
func (g *GeminiLLM) Available(ctx context.Context) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()

	_, err := g.model.CountTokens(ctx, genai.Text("ping"))
	return err == nil
}

// Close shuts down the client.
func (g *GeminiLLM) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.client.Close()
}
