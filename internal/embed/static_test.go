package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticModel_Deterministic(t *testing.T) {
	e := NewStaticModel()
	defer func() { _ = e.Close() }()

	a, err := e.Embed(context.Background(), "hybrid retrieval pipeline")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "hybrid retrieval pipeline")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticModel_DifferentTextsDiffer(t *testing.T) {
	e := NewStaticModel()
	defer func() { _ = e.Close() }()

	a, err := e.Embed(context.Background(), "vector search")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "keyword search")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStaticModel_SimilarTextsCloser(t *testing.T) {
	e := NewStaticModel()
	defer func() { _ = e.Close() }()

	ctx := context.Background()
	base, _ := e.Embed(ctx, "database replication lag monitoring")
	similar, _ := e.Embed(ctx, "database replication delay monitoring")
	unrelated, _ := e.Embed(ctx, "frontend css animation tricks")

	assert.Greater(t, CosineSimilarity(base, similar), CosineSimilarity(base, unrelated))
}

func TestStaticModel_EmptyText(t *testing.T) {
	e := NewStaticModel()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, StaticDimensions), vec)
}

func TestStaticModel_Normalized(t *testing.T) {
	e := NewStaticModel()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "some text to embed")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 0.001)
}

func TestStaticModel_Batch(t *testing.T) {
	e := NewStaticModel()
	defer func() { _ = e.Close() }()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a b c", "d e f"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	single, err := e.Embed(context.Background(), "a b c")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[0])
}

func TestStaticModel_Closed(t *testing.T) {
	e := NewStaticModel()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 0.001)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 0.001)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 0.001)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}
