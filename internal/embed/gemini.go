package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the Gemini embedding model used for query
// re-embedding.
const DefaultGeminiModel = "text-embedding-004"

// geminiDimensions is the output size of text-embedding-004.
const geminiDimensions = 768

// GeminiModel embeds text through the Gemini API. It serves as a premium
// query/rerank backend; documents stay on the local model.
type GeminiModel struct {
	client *genai.Client
	model  string
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Model = (*GeminiModel)(nil)

// NewGeminiModel creates a Gemini embedding backend.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiModel{
		client: client,
		model:  model,
		dims:   geminiDimensions,
	}, nil
}

// Embed generates the embedding for a single text.
func (g *GeminiModel) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, g.dims), nil
	}

	em := g.client.EmbeddingModel(g.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned empty embedding")
	}

	g.observeDims(len(res.Embedding.Values))
	return normalizeVector(res.Embedding.Values), nil
}

// EmbedBatch embeds multiple texts with one batch request. Empty texts map
// to zero vectors.
func (g *GeminiModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var nonEmptyIdx []int

	em := g.client.EmbeddingModel(g.model)
	batch := em.NewBatch()
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, g.dims)
			continue
		}
		batch.AddContent(genai.Text(text))
		nonEmptyIdx = append(nonEmptyIdx, i)
	}

	if len(nonEmptyIdx) == 0 {
		return results, nil
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embedding failed: %w", err)
	}
	if len(res.Embeddings) != len(nonEmptyIdx) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts",
			len(res.Embeddings), len(nonEmptyIdx))
	}

	for j, emb := range res.Embeddings {
		g.observeDims(len(emb.Values))
		results[nonEmptyIdx[j]] = normalizeVector(emb.Values)
	}
	return results, nil
}

func (g *GeminiModel) observeDims(n int) {
	g.mu.Lock()
	if n > 0 && g.dims != n {
		g.dims = n
	}
	g.mu.Unlock()
}

func (g *GeminiModel) checkOpen() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// Dimensions returns the embedding dimension.
func (g *GeminiModel) Dimensions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dims
}

// Name returns the model identifier.
func (g *GeminiModel) Name() string {
	return "gemini/" + g.model
}

// Available probes the API with a tiny embedding request.
func (g *GeminiModel) Available(ctx context.Context) bool {
	if g.checkOpen() != nil {
		return false
	}
	_, err := g.Embed(ctx, "ping")
	return err == nil
}

// Close releases the API client.
func (g *GeminiModel) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return g.client.Close()
}
