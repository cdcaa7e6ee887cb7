package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingModel wraps StaticModel and counts backend calls.
type countingModel struct {
	*StaticModel
	embedCalls atomic.Int32
	batchCalls atomic.Int32
}

func (m *countingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	return m.StaticModel.Embed(ctx, text)
}

func (m *countingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	return m.StaticModel.EmbedBatch(ctx, texts)
}

func TestCachedModel_HitSkipsBackend(t *testing.T) {
	inner := &countingModel{StaticModel: NewStaticModel()}
	c := NewCachedModel(inner, 10)
	ctx := context.Background()

	first, err := c.Embed(ctx, "repeated query")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "repeated query")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.embedCalls.Load())
}

func TestCachedModel_BatchOnlyEmbedsMisses(t *testing.T) {
	inner := &countingModel{StaticModel: NewStaticModel()}
	c := NewCachedModel(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "warm")
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(ctx, []string{"warm", "cold one", "cold two"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Only the two misses reached the backend
	assert.Equal(t, int32(1), inner.batchCalls.Load())
	assert.Equal(t, int32(1), inner.embedCalls.Load())

	// Full cache hit afterwards
	_, err = c.EmbedBatch(ctx, []string{"warm", "cold one", "cold two"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.batchCalls.Load())
}

func TestCachedModel_Eviction(t *testing.T) {
	inner := &countingModel{StaticModel: NewStaticModel()}
	c := NewCachedModel(inner, 2)
	ctx := context.Background()

	_, _ = c.Embed(ctx, "one")
	_, _ = c.Embed(ctx, "two")
	_, _ = c.Embed(ctx, "three") // evicts "one"
	_, _ = c.Embed(ctx, "one")   // miss again

	assert.Equal(t, int32(4), inner.embedCalls.Load())
}

func TestCachedModel_Passthrough(t *testing.T) {
	inner := &countingModel{StaticModel: NewStaticModel()}
	c := NewCachedModel(inner, 10)

	assert.Equal(t, StaticDimensions, c.Dimensions())
	assert.Equal(t, "static", c.Name())
	assert.True(t, c.Available(context.Background()))
	assert.Same(t, inner, c.Inner().(*countingModel))
	require.NoError(t, c.Close())
}
