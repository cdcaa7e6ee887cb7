package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metric(totalMS int64, cacheHit bool, tiers TierCounts) *QueryMetrics {
	return &QueryMetrics{
		QueryHash:       HashQuery("what is hnsw?"),
		TotalMS:         totalMS,
		Stages:          StageMS{Cache: 1, Retrieve: totalMS / 2, Generate: totalMS / 3},
		Tiers:           tiers,
		CacheHit:        cacheHit,
		TokensPrompt:    900,
		TokensAnswer:    120,
		EmbedderBackend: "ollama",
	}
}

func TestStore_RecordAndAggregates(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Record(ctx, metric(10, true, TierCounts{Local: 5})))
	require.NoError(t, s.Record(ctx, metric(20, false, TierCounts{Local: 5, WebKB: 2})))
	require.NoError(t, s.Record(ctx, metric(30, false, TierCounts{Local: 5})))
	require.NoError(t, s.Record(ctx, metric(500, false, TierCounts{Local: 5, LiveWeb: 3})))

	agg, err := s.Aggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, agg.QueryCount)
	assert.InDelta(t, 0.25, agg.CacheHitRate, 0.001)
	assert.InDelta(t, 1.0, agg.TierUsage.Local, 0.001)
	assert.InDelta(t, 0.25, agg.TierUsage.WebKB, 0.001)
	assert.InDelta(t, 0.25, agg.TierUsage.LiveWeb, 0.001)

	// Nearest-rank on sorted {10, 20, 30, 500}.
	assert.Equal(t, int64(30), agg.P50MS)
	assert.Equal(t, int64(500), agg.P95MS)
}

func TestStore_EmptyAggregates(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)
	defer s.Close()

	agg, err := s.Aggregates(context.Background())
	require.NoError(t, err)
	assert.Zero(t, agg.QueryCount)
	assert.Zero(t, agg.P50MS)
}

func TestStore_Prune(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	old := metric(10, false, TierCounts{Local: 1})
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Record(ctx, old))
	require.NoError(t, s.Record(ctx, metric(10, false, TierCounts{Local: 1})))

	pruned, err := s.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	agg, err := s.Aggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.QueryCount)
}

func TestStore_PersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")

	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), metric(10, false, TierCounts{Local: 1})))
	require.NoError(t, s.Close())

	s2, err := NewStore(path)
	require.NoError(t, err)
	defer s2.Close()

	agg, err := s2.Aggregates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, agg.QueryCount)
}

func TestStore_ClosedOperations(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Error(t, s.Record(context.Background(), metric(1, false, TierCounts{})))
	_, err = s.Aggregates(context.Background())
	assert.Error(t, err)
}

func TestHashQuery(t *testing.T) {
	assert.Equal(t, HashQuery("same"), HashQuery("same"))
	assert.NotEqual(t, HashQuery("one"), HashQuery("two"))
	assert.Len(t, HashQuery("query"), 16)
}
