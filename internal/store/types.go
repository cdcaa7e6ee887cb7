// Package store provides the persistence layer: the HNSW vector index,
// the bleve keyword index, and the SQLite document catalog.
package store

import (
	"context"
	"fmt"
	"time"
)

// DocumentType classifies a source document.
type DocumentType string

const (
	DocumentTypeMarkdown DocumentType = "markdown"
	DocumentTypePDF      DocumentType = "pdf"
	DocumentTypeText     DocumentType = "text"
	DocumentTypeWeb      DocumentType = "web"
)

// SectionType classifies the structural origin of a chunk.
type SectionType string

const (
	SectionTypeText       SectionType = "text"
	SectionTypeHeader     SectionType = "header"
	SectionTypeCodeBlock  SectionType = "code_block"
	SectionTypeTableChunk SectionType = "table_chunk"
)

// Filterable payload field names. Equality filters and DeleteBy accept
// exactly these.
const (
	FieldSourcePath   = "source_path"
	FieldDocumentID   = "document_id"
	FieldDocumentType = "document_type"
	FieldSectionType  = "section_type"
)

// Payload is the metadata stored alongside each indexed chunk. It inherits
// the owning document's identity plus the file hash and mtime used by the
// incremental ingest check.
type Payload struct {
	SourcePath   string `json:"source_path"`
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	SectionType  string `json:"section_type"`
	SectionLevel int    `json:"section_level"`
	ChunkIndex   int    `json:"chunk_index"`
	StartChar    int    `json:"start_char"`
	EndChar      int    `json:"end_char"`
	FileHash     string `json:"file_hash"`
	FileMTime    int64  `json:"file_mtime"`
	Text         string `json:"text"`
}

// Field returns the value of a filterable payload field.
func (p *Payload) Field(name string) (string, bool) {
	switch name {
	case FieldSourcePath:
		return p.SourcePath, true
	case FieldDocumentID:
		return p.DocumentID, true
	case FieldDocumentType:
		return p.DocumentType, true
	case FieldSectionType:
		return p.SectionType, true
	default:
		return "", false
	}
}

// Filters are equality predicates on filterable payload fields.
type Filters map[string]string

// Match reports whether the payload satisfies every filter predicate.
// An unknown field name never matches.
func (f Filters) Match(p *Payload) bool {
	for field, want := range f {
		got, ok := p.Field(field)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Point is an entry upserted into the VectorIndex.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// VectorHit is a single vector search result.
type VectorHit struct {
	ID      string
	Score   float32 // cosine similarity mapped to 0..1
	Payload Payload
}

// VectorInfo describes the state of a vector index.
type VectorInfo struct {
	PointCount int `json:"point_count"`
	VectorSize int `json:"vector_size"`
	Orphans    int `json:"orphans"`
}

// VectorIndex stores {id, vector, payload} points and serves filtered
// nearest-neighbor search. Upserts are idempotent by ID.
type VectorIndex interface {
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, topK int, filters Filters) ([]*VectorHit, error)
	// DeleteBy removes every point whose payload field equals value and
	// returns the number removed.
	DeleteBy(ctx context.Context, field, value string) (int, error)
	DeleteIDs(ctx context.Context, ids []string) error
	// FindByField returns up to limit points matching a payload equality,
	// without a vector query. Used by the incremental ingest lookup and the
	// reconciler.
	FindByField(ctx context.Context, field, value string, limit int) ([]*VectorHit, error)
	Info() VectorInfo
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// KeywordDoc is a document indexed for lexical search.
type KeywordDoc struct {
	ID      string
	Text    string
	Payload Payload
}

// KeywordHit is a single keyword search result.
type KeywordHit struct {
	ID      string
	Text    string
	Score   float64 // BM25-family; ranking contractual, values not
	Payload Payload
}

// KeywordIndex provides BM25-family lexical search over chunk text.
type KeywordIndex interface {
	Index(ctx context.Context, docs []*KeywordDoc) error
	Search(ctx context.Context, query string, limit int, filters Filters) ([]*KeywordHit, error)
	DeleteBy(ctx context.Context, field, value string) (int, error)
	DeleteIDs(ctx context.Context, ids []string) error
	Count() (int, error)
	Close() error
}

// Document is a catalog row describing one ingested source file.
type Document struct {
	SourcePath  string
	DocumentID  string
	ContentHash string // sha256 of the full file bytes
	MTime       time.Time
	Type        DocumentType
	Confidence  float64
	ChunkCount  int
	IngestedAt  time.Time
}

// CatalogStats summarizes catalog contents.
type CatalogStats struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
}

// Catalog is the O(1) side-table used by incremental ingest to detect
// unchanged files without probing the vector index.
type Catalog interface {
	SaveDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, sourcePath string) (*Document, error)
	DeleteDocument(ctx context.Context, sourcePath string) error
	ListDocuments(ctx context.Context) ([]*Document, error)
	Stats(ctx context.Context) (*CatalogStats, error)
	Close() error
}

// VectorIndexConfig configures the HNSW vector index.
type VectorIndexConfig struct {
	// Dimensions is the local embedding vector size.
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for the vector index.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}

// KeywordIndexConfig configures the keyword index analyzer.
type KeywordIndexConfig struct {
	// StopWords are filtered out during analysis.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultKeywordIndexConfig returns default keyword index configuration.
func DefaultKeywordIndexConfig() KeywordIndexConfig {
	return KeywordIndexConfig{
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords are common English words carrying no retrieval signal
// in technical documentation.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
	"if", "in", "into", "is", "it", "of", "on", "or", "such", "that",
	"the", "their", "then", "there", "these", "they", "this", "to",
	"was", "will", "with",
}

// ErrDimensionMismatch indicates a vector dimension mismatch between the
// index schema and a supplied vector.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reingest with --force to rebuild)", e.Expected, e.Got)
}
