package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// DocTokenizerName is the name of our custom document tokenizer.
	DocTokenizerName = "doc_tokenizer"

	// DocStopFilterName is the name of our custom stop word filter.
	DocStopFilterName = "doc_stop"

	// DocAnalyzerName is the name of our custom document analyzer.
	DocAnalyzerName = "doc_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(DocTokenizerName, docTokenizerConstructor)
	_ = registry.RegisterTokenFilter(DocStopFilterName, docStopFilterConstructor)
}

// BleveKeywordIndex wraps bleve v2 for BM25 keyword search over chunk text.
// Filterable payload fields are indexed verbatim as keyword fields; the full
// payload is carried as a stored JSON field.
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config KeywordIndexConfig
	closed bool
}

// bleveChunk is the document shape handed to bleve.
type bleveChunk struct {
	Content      string `json:"content"`
	SourcePath   string `json:"source_path"`
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	SectionType  string `json:"section_type"`
	Payload      string `json:"payload"`
}

// validateIndexIntegrity checks a bleve index directory before opening so a
// half-written index is cleared instead of failing every open thereafter.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveKeywordIndex creates or opens a keyword index. If path is empty,
// an in-memory index is created. A corrupted on-disk index is cleared and
// recreated with a warning.
func NewBleveKeywordIndex(path string, config KeywordIndexConfig) (*BleveKeywordIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("keyword_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reingest"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveKeywordIndex{
		index:  idx,
		path:   path,
		config: config,
	}, nil
}

// createIndexMapping creates the bleve index mapping: analyzed content,
// verbatim keyword fields for filters, and a stored-only payload field.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(DocAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": DocTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			DocStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = DocAnalyzerName

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = DocAnalyzerName
	contentField.Store = true
	docMapping.AddFieldMappingsAt("content", contentField)

	for _, field := range []string{FieldSourcePath, FieldDocumentID, FieldDocumentType, FieldSectionType} {
		keywordField := bleve.NewKeywordFieldMapping()
		keywordField.Store = false
		docMapping.AddFieldMappingsAt(field, keywordField)
	}

	payloadField := bleve.NewTextFieldMapping()
	payloadField.Store = true
	payloadField.Index = false
	docMapping.AddFieldMappingsAt("payload", payloadField)

	indexMapping.DefaultMapping = docMapping

	return indexMapping, nil
}

// Index adds documents to the index, replacing any with the same ID.
func (b *BleveKeywordIndex) Index(ctx context.Context, docs []*KeywordDoc) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		payloadJSON, err := json.Marshal(doc.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for %s: %w", doc.ID, err)
		}
		entry := bleveChunk{
			Content:      doc.Text,
			SourcePath:   doc.Payload.SourcePath,
			DocumentID:   doc.Payload.DocumentID,
			DocumentType: doc.Payload.DocumentType,
			SectionType:  doc.Payload.SectionType,
			Payload:      string(payloadJSON),
		}
		if err := batch.Index(doc.ID, entry); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Search returns documents matching the query, scored by bleve's BM25-family
// scorer, with optional equality filters on payload fields.
func (b *BleveKeywordIndex) Search(ctx context.Context, queryStr string, limit int, filters Filters) ([]*KeywordHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*KeywordHit{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	var finalQuery query.Query = matchQuery
	if len(filters) > 0 {
		conjuncts := []query.Query{matchQuery}
		for field, value := range filters {
			termQuery := bleve.NewTermQuery(value)
			termQuery.SetField(field)
			conjuncts = append(conjuncts, termQuery)
		}
		finalQuery = bleve.NewConjunctionQuery(conjuncts...)
	}

	searchRequest := bleve.NewSearchRequest(finalQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"content", "payload"}

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		kh := &KeywordHit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if content, ok := hit.Fields["content"].(string); ok {
			kh.Text = content
		}
		if raw, ok := hit.Fields["payload"].(string); ok {
			if err := json.Unmarshal([]byte(raw), &kh.Payload); err != nil {
				slog.Warn("keyword_payload_decode_failed",
					slog.String("id", hit.ID),
					slog.String("error", err.Error()))
			}
		}
		results = append(results, kh)
	}

	return results, nil
}

// DeleteBy removes every document whose payload field equals value and
// returns the number removed.
func (b *BleveKeywordIndex) DeleteBy(ctx context.Context, field, value string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, fmt.Errorf("keyword index is closed")
	}

	termQuery := bleve.NewTermQuery(value)
	termQuery.SetField(field)

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(termQuery)
	req.Size = int(docCount)

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("failed to find documents to delete: %w", err)
	}
	if len(result.Hits) == 0 {
		return 0, nil
	}

	batch := b.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}

	return len(result.Hits), nil
}

// DeleteIDs removes documents by ID.
func (b *BleveKeywordIndex) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// AllIDs returns all document IDs in the index. Used by the reconciler.
func (b *BleveKeywordIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for all IDs: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Count returns the number of indexed documents.
func (b *BleveKeywordIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("keyword index is closed")
	}

	docCount, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(docCount), nil
}

// Close closes the index.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// docTokenizerConstructor creates the document tokenizer for bleve.
func docTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveDocTokenizer{}, nil
}

// bleveDocTokenizer implements analysis.Tokenizer using the identifier-aware
// text tokenizer, which splits camelCase and snake_case terms that show up
// in technical documentation.
type bleveDocTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveDocTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeText(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// docStopFilterConstructor creates the stop word filter for bleve.
func docStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveDocStopFilter{
		stopWords: BuildStopWordMap(DefaultStopWords),
	}, nil
}

// bleveDocStopFilter implements analysis.TokenFilter for stop words.
type bleveDocStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveDocStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
