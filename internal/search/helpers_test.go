package search

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/Aman-CERP/archrag/internal/embed"
	"github.com/Aman-CERP/archrag/internal/store"
)

// stubVectorIndex serves canned hits and records the requested topK.
type stubVectorIndex struct {
	hits      []*store.VectorHit
	err       error
	lastTopK  int
	lastQuery []float32
}

func (s *stubVectorIndex) Upsert(context.Context, []store.Point) error { return nil }

func (s *stubVectorIndex) Search(_ context.Context, vector []float32, topK int, _ store.Filters) ([]*store.VectorHit, error) {
	s.lastTopK = topK
	s.lastQuery = vector
	if s.err != nil {
		return nil, s.err
	}
	if topK < len(s.hits) {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

func (s *stubVectorIndex) DeleteBy(context.Context, string, string) (int, error) { return 0, nil }
func (s *stubVectorIndex) DeleteIDs(context.Context, []string) error             { return nil }
func (s *stubVectorIndex) FindByField(context.Context, string, string, int) ([]*store.VectorHit, error) {
	return nil, nil
}
func (s *stubVectorIndex) Info() store.VectorInfo { return store.VectorInfo{PointCount: len(s.hits)} }
func (s *stubVectorIndex) Count() int             { return len(s.hits) }
func (s *stubVectorIndex) Save(string) error      { return nil }
func (s *stubVectorIndex) Load(string) error      { return nil }
func (s *stubVectorIndex) Close() error           { return nil }

var _ store.VectorIndex = (*stubVectorIndex)(nil)

// stubKeywordIndex serves canned keyword hits.
type stubKeywordIndex struct {
	hits []*store.KeywordHit
	err  error
}

func (s *stubKeywordIndex) Index(context.Context, []*store.KeywordDoc) error { return nil }

func (s *stubKeywordIndex) Search(_ context.Context, _ string, limit int, _ store.Filters) ([]*store.KeywordHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.hits) {
		return s.hits[:limit], nil
	}
	return s.hits, nil
}

func (s *stubKeywordIndex) DeleteBy(context.Context, string, string) (int, error) { return 0, nil }
func (s *stubKeywordIndex) DeleteIDs(context.Context, []string) error             { return nil }
func (s *stubKeywordIndex) Count() (int, error)                                   { return len(s.hits), nil }
func (s *stubKeywordIndex) Close() error                                          { return nil }

var _ store.KeywordIndex = (*stubKeywordIndex)(nil)

// stubEmbedder returns a fixed query vector and re-embeds candidates so
// their premium cosine equals a per-text canned score.
type stubEmbedder struct {
	dims          int
	queryVec      []float32
	queryErr      error
	reEmbedErr    error
	reEmbedScores map[string]float64
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, s.dims)
	}
	return vecs, nil
}

func (s *stubEmbedder) EmbedQuery(context.Context, string, embed.Backend) ([]float32, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.queryVec, nil
}

func (s *stubEmbedder) ReEmbed(_ context.Context, texts []string, _ string, _ embed.Backend) ([][]float32, []float32, error) {
	if s.reEmbedErr != nil {
		return nil, nil, s.reEmbedErr
	}
	docVecs := make([][]float32, len(texts))
	for i, text := range texts {
		docVecs[i] = vecWithCosine(s.reEmbedScores[text])
	}
	return docVecs, []float32{1, 0}, nil
}

func (s *stubEmbedder) Dimensions() int { return s.dims }
func (s *stubEmbedder) Close() error    { return nil }

var _ embed.Embedder = (*stubEmbedder)(nil)

// vecWithCosine builds a unit vector whose cosine with [1, 0] equals s.
func vecWithCosine(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

// stubTier is a canned TierSource that counts invocations.
type stubTier struct {
	items []*RetrievedItem
	err   error
	calls atomic.Int32
}

func (s *stubTier) Retrieve(context.Context, string, int) ([]*RetrievedItem, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

var _ TierSource = (*stubTier)(nil)

// localItem builds a tier-1 item with a chunk index for tie-break tests.
func localItem(id string, score float64, chunkIndex int) *RetrievedItem {
	return &RetrievedItem{
		ID:       id,
		Text:     "content of " + id,
		Score:    score,
		Tier:     TierLocal,
		Metadata: store.Payload{ChunkIndex: chunkIndex},
	}
}
