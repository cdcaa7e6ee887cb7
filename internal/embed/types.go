// Package embed produces vector embeddings for chunks and queries. Chunks
// are always embedded with the local model; queries may go through a
// premium backend whose vectors are mapped into local space by a per-backend
// alignment matrix.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Backend identifies an embedding backend. The set is closed.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendGemini Backend = "gemini"
	BackendOpenAI Backend = "openai"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendOllama, BackendGemini, BackendOpenAI:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("unknown embedding backend %q", s)
	}
}

// Batch and retry defaults.
const (
	DefaultBatchSize  = 32
	MaxBatchSize      = 256
	DefaultMaxRetries = 3

	// Warm and cold request timeouts. Ollama unloads idle models after
	// about five minutes; the first request after that pays the load cost.
	DefaultWarmTimeout   = 60 * time.Second
	DefaultColdTimeout   = 180 * time.Second
	ModelUnloadThreshold = 5 * time.Minute
)

// StaticDimensions is the vector size of the hash-projection embedder.
const StaticDimensions = 256

// Model is a single embedding backend: it turns texts into vectors in its
// own space.
type Model interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// Name returns the model identifier.
	Name() string

	// Available reports whether the backend is reachable and ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Embedder is the embedding service used by ingestion and retrieval.
// Documents are embedded in local space; queries may be embedded by a
// premium backend and aligned into local space for index search.
type Embedder interface {
	// EmbedDocuments embeds chunk texts with the local model.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a query. With a premium backend and a loaded
	// alignment matrix the result is the premium vector mapped into local
	// space; otherwise the local model is used directly.
	EmbedQuery(ctx context.Context, text string, backend Backend) ([]float32, error)

	// ReEmbed embeds candidate texts and the query in the premium
	// backend's own space, for re-ranking.
	ReEmbed(ctx context.Context, texts []string, query string, backend Backend) ([][]float32, []float32, error)

	// Dimensions returns the local embedding dimension.
	Dimensions() int

	// Close releases all backends.
	Close() error
}

// normalizeVector normalizes a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors
// of different lengths or zero magnitude score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
