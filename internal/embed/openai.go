package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is the OpenAI embedding model used for query
// re-embedding.
const DefaultOpenAIModel = string(openaisdk.EmbeddingModelTextEmbedding3Small)

// openAIDimensions is the output size of text-embedding-3-small.
const openAIDimensions = 1536

// OpenAIModel embeds text through the OpenAI embeddings API.
type OpenAIModel struct {
	client openaisdk.Client
	model  openaisdk.EmbeddingModel
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Model = (*OpenAIModel)(nil)

// NewOpenAIModel creates an OpenAI embedding backend. baseURL may be empty
// for the default endpoint.
func NewOpenAIModel(apiKey, baseURL, model string) (*OpenAIModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIModel{
		client: openaisdk.NewClient(opts...),
		model:  openaisdk.EmbeddingModel(model),
		dims:   openAIDimensions,
	}, nil
}

// Embed generates the embedding for a single text.
func (o *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts with one API call. Empty texts map to
// zero vectors.
func (o *OpenAIModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var nonEmptyIdx []int
	var nonEmpty []string

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, o.dims)
			continue
		}
		nonEmptyIdx = append(nonEmptyIdx, i)
		nonEmpty = append(nonEmpty, text)
	}
	if len(nonEmpty) == 0 {
		return results, nil
	}

	resp, err := o.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: o.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: nonEmpty,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) != len(nonEmpty) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts",
			len(resp.Data), len(nonEmpty))
	}

	for j, emb := range resp.Data {
		vec := make([]float32, len(emb.Embedding))
		for k, v := range emb.Embedding {
			vec[k] = float32(v)
		}
		o.observeDims(len(vec))
		results[nonEmptyIdx[j]] = normalizeVector(vec)
	}
	return results, nil
}

func (o *OpenAIModel) observeDims(n int) {
	o.mu.Lock()
	if n > 0 && o.dims != n {
		o.dims = n
	}
	o.mu.Unlock()
}

func (o *OpenAIModel) checkOpen() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// Dimensions returns the embedding dimension.
func (o *OpenAIModel) Dimensions() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.dims
}

// Name returns the model identifier.
func (o *OpenAIModel) Name() string {
	return "openai/" + string(o.model)
}

// Available probes the API with a tiny embedding request.
func (o *OpenAIModel) Available(ctx context.Context) bool {
	if o.checkOpen() != nil {
		return false
	}
	_, err := o.Embed(ctx, "ping")
	return err == nil
}

// Close marks the backend closed. The underlying client has no resources
// beyond pooled HTTP connections.
func (o *OpenAIModel) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}
