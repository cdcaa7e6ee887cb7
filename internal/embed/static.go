package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticModel generates deterministic hash-projection embeddings with no
// network or model download. Semantic quality is reduced; it serves as a
// test double and a last-resort fallback when no local model is reachable.
type StaticModel struct {
	mu     sync.RWMutex
	closed bool
}

var _ Model = (*StaticModel)(nil)

// commonStopWords are filtered before hashing so function words do not
// dominate the projection.
var commonStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"with": true, "that": true, "this": true, "from": true, "have": true,
	"not": true, "but": true, "what": true, "can": true, "will": true,
}

// Projection weights.
const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

var staticTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticModel creates a static embedder.
func NewStaticModel() *StaticModel {
	return &StaticModel{}
}

// Embed generates a deterministic embedding for the text. Empty text maps
// to the zero vector.
func (e *StaticModel) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	return normalizeVector(e.project(trimmed)), nil
}

// project hashes word tokens and character n-grams into a fixed-size
// vector.
func (e *StaticModel) project(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, token := range staticTokenize(text) {
		if commonStopWords[token] {
			continue
		}
		vector[hashToIndex(token, StaticDimensions)] += staticTokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, staticNgramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += staticNgramWeight
	}

	return vector
}

// staticTokenize lowercases and splits words, including camelCase and
// snake_case identifiers embedded in technical prose.
func staticTokenize(text string) []string {
	var tokens []string
	for _, word := range staticTokenRegex.FindAllString(text, -1) {
		for _, t := range splitCamel(word) {
			if t != "" {
				tokens = append(tokens, strings.ToLower(t))
			}
		}
	}
	return tokens
}

func splitCamel(s string) []string {
	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticModel) Dimensions() int {
	return StaticDimensions
}

// Name returns the model identifier.
func (e *StaticModel) Name() string {
	return "static"
}

// Available is true until Close.
func (e *StaticModel) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticModel) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
