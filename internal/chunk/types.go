// Package chunk splits extracted document text into ordered, structure-aware
// chunks with deterministic IDs. Markdown documents are chunked by section
// (headers, code fences, tables); everything else falls back to paragraph
// packing.
package chunk

import (
	"fmt"

	"github.com/google/uuid"
)

// Chunking defaults, in words.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
	DefaultMinChunkSize = 64
)

// SectionType classifies the structural origin of a chunk.
type SectionType string

const (
	SectionText       SectionType = "text"
	SectionHeader     SectionType = "header"
	SectionCodeBlock  SectionType = "code_block"
	SectionTableChunk SectionType = "table_chunk"
)

// Mode selects the chunking strategy for a document.
type Mode string

const (
	ModeMarkdown Mode = "markdown"
	ModeGeneric  Mode = "generic"
)

// ModeForType maps a document type string to a chunking mode.
func ModeForType(docType string) Mode {
	if docType == "markdown" {
		return ModeMarkdown
	}
	return ModeGeneric
}

// Chunk is one retrievable unit of a document. StartChar and EndChar are
// byte offsets into the extracted text; overlapping ranges are expected
// between adjacent chunks of an oversized section.
type Chunk struct {
	ID           string
	Text         string
	Index        int
	SectionType  SectionType
	SectionLevel int
	StartChar    int
	EndChar      int
}

// Options configures the chunker. All sizes are in words.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

// DefaultOptions returns the default chunking parameters.
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		MinChunkSize: DefaultMinChunkSize,
	}
}

// ChunkID derives the deterministic chunk UUID from the source path and
// chunk index. Re-ingesting identical content yields identical IDs, which
// makes index upserts idempotent.
func ChunkID(sourcePath string, index int) string {
	name := fmt.Sprintf("%s:%d", sourcePath, index)
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(name)).String()
}
