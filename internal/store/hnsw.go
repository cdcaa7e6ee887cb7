package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex implements VectorIndex using the coder/hnsw pure Go HNSW graph
// with cosine distance. Payloads live in an in-memory map persisted next to
// the graph file.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	// ID mapping (string <-> uint64) plus per-point payloads.
	idMap    map[string]uint64
	keyMap   map[uint64]string
	payloads map[string]Payload
	nextKey  uint64

	closed bool
}

// hnswMetadata stores ID mappings and payloads for persistence.
type hnswMetadata struct {
	IDMap    map[string]uint64
	Payloads map[string]Payload
	NextKey  uint64
	Config   VectorIndexConfig
}

// NewHNSWIndex creates a new HNSW-backed vector index.
func NewHNSWIndex(cfg VectorIndexConfig) (*HNSWIndex, error) {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:    graph,
		config:   cfg,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		payloads: make(map[string]Payload),
		nextKey:  0,
	}, nil
}

// Upsert inserts points, replacing any existing point with the same ID.
// Replacement uses lazy deletion: the old graph node is orphaned rather
// than removed, which sidesteps graph-repair issues when deleting nodes.
func (s *HNSWIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, p := range points {
		if len(p.Vector) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(p.Vector)}
		}
	}

	for _, p := range points {
		if existingKey, exists := s.idMap[p.ID]; exists {
			delete(s.keyMap, existingKey) // orphan the old node
			delete(s.idMap, p.ID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[p.ID] = key
		s.keyMap[key] = p.ID
		s.payloads[p.ID] = p.Payload
	}

	return nil
}

// Search finds the topK nearest points by cosine similarity, applying
// equality filters on payload fields. Filtered searches oversample the
// graph and post-filter, so heavily filtered queries may return fewer
// than topK results.
func (s *HNSWIndex) Search(ctx context.Context, vector []float32, topK int, filters Filters) ([]*VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(vector) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(vector)}
	}
	if s.graph.Len() == 0 || topK <= 0 {
		return []*VectorHit{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeVectorInPlace(query)

	// Oversample to compensate for orphaned nodes and post-filtering.
	fetch := topK
	if len(filters) > 0 {
		fetch = topK * 4
	}
	if orphans := s.graph.Len() - len(s.idMap); orphans > 0 {
		fetch += orphans
	}
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}

	nodes := s.graph.Search(query, fetch)

	results := make([]*VectorHit, 0, topK)
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue // lazy-deleted node
		}
		payload := s.payloads[id]
		if len(filters) > 0 && !filters.Match(&payload) {
			continue
		}

		distance := s.graph.Distance(query, node.Value)
		results = append(results, &VectorHit{
			ID:      id,
			Score:   distanceToScore(distance),
			Payload: payload,
		})
		if len(results) >= topK {
			break
		}
	}

	return results, nil
}

// DeleteBy removes every point whose payload field equals value.
func (s *HNSWIndex) DeleteBy(ctx context.Context, field, value string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("vector index is closed")
	}

	deleted := 0
	for id, payload := range s.payloads {
		got, ok := payload.Field(field)
		if !ok || got != value {
			continue
		}
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
		delete(s.payloads, id)
		deleted++
	}

	return deleted, nil
}

// DeleteIDs removes points by ID using lazy deletion.
func (s *HNSWIndex) DeleteIDs(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
		delete(s.payloads, id)
	}

	return nil
}

// FindByField returns up to limit points matching a payload equality. This
// is a linear scan over payloads; it backs the incremental ingest lookup
// and the reconciler, not the query hot path.
func (s *HNSWIndex) FindByField(ctx context.Context, field, value string, limit int) ([]*VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}

	results := make([]*VectorHit, 0, limit)
	for id, payload := range s.payloads {
		got, ok := payload.Field(field)
		if !ok || got != value {
			continue
		}
		results = append(results, &VectorHit{ID: id, Score: 0, Payload: payload})
		if limit > 0 && len(results) >= limit {
			break
		}
	}

	return results, nil
}

// AllIDs returns all point IDs. Used by the reconciler.
func (s *HNSWIndex) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	ids := make([]string, 0, len(s.idMap))
	for id := range s.idMap {
		ids = append(ids, id)
	}
	return ids
}

// Contains checks if an ID exists.
func (s *HNSWIndex) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.idMap[id]
	return exists
}

// Count returns the number of live points.
func (s *HNSWIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Info returns point count, vector size, and the orphan count left behind
// by lazy deletion. Compaction eligibility is decided from Orphans.
func (s *HNSWIndex) Info() VectorInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return VectorInfo{}
	}

	return VectorInfo{
		PointCount: len(s.idMap),
		VectorSize: s.config.Dimensions,
		Orphans:    s.graph.Len() - len(s.idMap),
	}
}

// Compact rebuilds the graph without lazy-deleted nodes and returns the
// number of orphans dropped.
func (s *HNSWIndex) Compact() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("vector index is closed")
	}

	orphans := s.graph.Len() - len(s.idMap)
	if orphans <= 0 {
		return 0, nil
	}

	fresh := hnsw.NewGraph[uint64]()
	fresh.Distance = hnsw.CosineDistance
	fresh.M = s.config.M
	fresh.EfSearch = s.config.EfSearch
	fresh.Ml = 0.25

	newIDMap := make(map[string]uint64, len(s.idMap))
	newKeyMap := make(map[uint64]string, len(s.idMap))
	var nextKey uint64

	for id, oldKey := range s.idMap {
		vec, ok := s.graph.Lookup(oldKey)
		if !ok {
			continue
		}
		key := nextKey
		nextKey++
		fresh.Add(hnsw.MakeNode(key, vec))
		newIDMap[id] = key
		newKeyMap[key] = id
	}

	s.graph = fresh
	s.idMap = newIDMap
	s.keyMap = newKeyMap
	s.nextKey = nextKey

	return orphans, nil
}

// Save persists the graph and metadata to disk atomically (temp + rename).
func (s *HNSWIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpIndexPath := path + ".tmp"
	file, err := os.Create(tmpIndexPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpIndexPath, path); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := s.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// saveMetadata saves ID mappings and payloads to a gob file.
func (s *HNSWIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:    s.idMap,
		Payloads: s.payloads,
		NextKey:  s.nextKey,
		Config:   s.config,
	}

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load loads the graph and metadata from disk.
func (s *HNSWIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	return nil
}

// loadMetadata loads ID mappings and payloads from a gob file.
func (s *HNSWIndex) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswMetadata
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&meta); err != nil {
		return fmt.Errorf("decode hnsw metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.payloads = meta.Payloads
	s.keyMap = make(map[uint64]string)
	s.nextKey = meta.NextKey
	s.config = meta.Config
	if s.payloads == nil {
		s.payloads = make(map[string]Payload)
	}

	for id, key := range s.idMap {
		s.keyMap[key] = id
	}

	return nil
}

// Close releases resources.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.graph = nil

	return nil
}

// ReadHNSWIndexDimensions reads the dimensions from an existing index's
// metadata. Returns 0 if the metadata file doesn't exist (fresh start).
func ReadHNSWIndexDimensions(vectorPath string) (int, error) {
	metaPath := vectorPath + ".meta"

	file, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open hnsw metadata: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close hnsw metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswMetadata
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&meta); err != nil {
		return 0, fmt.Errorf("failed to decode hnsw metadata: %w", err)
	}

	return meta.Config.Dimensions, nil
}

// Verify interface implementation
var _ VectorIndex = (*HNSWIndex)(nil)

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts cosine distance (0..2) to similarity (0..1).
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
