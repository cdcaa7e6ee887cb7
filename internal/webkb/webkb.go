// Package webkb persists fetched web content as a searchable knowledge
// base: an HNSW collection of its own plus a sqlite metadata table with
// TTL expiry, URL and content-hash dedup, and access counters.
package webkb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/archrag/internal/embed"
	ragerr "github.com/Aman-CERP/archrag/internal/errors"
	"github.com/Aman-CERP/archrag/internal/store"
	"github.com/Aman-CERP/archrag/internal/web"
)

// Defaults for the knowledge base.
const (
	DefaultTTLDays  = 7
	DefaultMaxSize  = 10000
	DefaultMaxChars = 8000
)

// WebDocument is one stored web page.
type WebDocument struct {
	ID             string
	URL            string
	Domain         string
	Title          string
	ContentHash    string
	FullText       string
	TrustScore     float64
	FetchedAt      time.Time
	ExpiryAt       time.Time
	TimesRetrieved int
	LastRetrieved  time.Time
	Citation       string
	Method         string
}

// Expired reports whether the document is past its TTL.
func (d *WebDocument) Expired(now time.Time) bool {
	return now.After(d.ExpiryAt)
}

// Hit is one knowledge-base search result.
type Hit struct {
	ID         string
	URL        string
	Title      string
	Citation   string
	Text       string
	Score      float64
	TrustScore float64
}

// Stats summarizes knowledge-base contents.
type Stats struct {
	DocumentCount int `json:"document_count"`
	ExpiredCount  int `json:"expired_count"`
}

// Config tunes retention and truncation.
type Config struct {
	// TTLDays is how long a fetched page stays fresh.
	TTLDays int

	// MaxSize caps stored documents; beyond it, expired documents are
	// swept first, then the oldest-accessed evicted.
	MaxSize int

	// MaxChars is the head+tail truncation budget applied before
	// embedding.
	MaxChars int
}

// DefaultConfig returns the default knowledge-base configuration.
func DefaultConfig() Config {
	return Config{TTLDays: DefaultTTLDays, MaxSize: DefaultMaxSize, MaxChars: DefaultMaxChars}
}

// Store is the web knowledge base. It owns its vector collection; the
// document indexes never see web content.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	vectors  store.VectorIndex
	embedder embed.Embedder
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	closed   bool
}

// New opens or creates the knowledge base. An empty dbPath uses an
// in-memory database.
func New(dbPath string, vectors store.VectorIndex, embedder embed.Embedder, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.TTLDays <= 0 {
		cfg.TTLDays = DefaultTTLDays
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if log == nil {
		log = slog.Default()
	}

	dsn := ":memory:"
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create webkb directory: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open webkb database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{
		db:       db,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize webkb schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS web_documents (
		id              TEXT PRIMARY KEY,
		url             TEXT NOT NULL UNIQUE,
		domain          TEXT NOT NULL,
		title           TEXT NOT NULL DEFAULT '',
		content_hash    TEXT NOT NULL,
		full_text       TEXT NOT NULL,
		trust_score     REAL NOT NULL DEFAULT 0.5,
		fetched_at      INTEGER NOT NULL,
		expiry_at       INTEGER NOT NULL,
		times_retrieved INTEGER NOT NULL DEFAULT 0,
		last_retrieved  INTEGER NOT NULL,
		citation        TEXT NOT NULL DEFAULT '',
		method          TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_web_documents_hash ON web_documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_web_documents_expiry ON web_documents(expiry_at);
	CREATE INDEX IF NOT EXISTS idx_web_documents_access ON web_documents(last_retrieved);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DocumentID derives the deterministic ID for a URL.
func DocumentID(url string) string {
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(url)).String()
}

// Exists returns the stored document for a URL, if any.
func (s *Store) Exists(ctx context.Context, url string) (*WebDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	doc, err := s.getBy(ctx, "url", url)
	if err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

// Ingest stores a web result. Duplicate URLs and duplicate content refresh
// the existing row's access counters instead of re-embedding. Returns the
// stored document ID.
func (s *Store) Ingest(ctx context.Context, result *web.Result, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("webkb is closed")
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", ragerr.New(ragerr.ErrCodeInvalidInput, "web result has no content", nil)
	}
	if result.TrustScore == 0 && result.Domain != "" {
		return "", ragerr.New(ragerr.ErrCodeInvalidInput, "blocked domain: "+result.Domain, nil)
	}

	if existing, err := s.getBy(ctx, "url", result.URL); err != nil {
		return "", err
	} else if existing != nil {
		if err := s.touch(ctx, existing.ID); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	text = truncateHeadTail(text, s.cfg.MaxChars)
	hash := contentHash(text)

	if existing, err := s.getBy(ctx, "content_hash", hash); err != nil {
		return "", err
	} else if existing != nil {
		if err := s.touch(ctx, existing.ID); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	if err := s.ensureCapacity(ctx); err != nil {
		return "", err
	}

	vecs, err := s.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return "", ragerr.New(ragerr.ErrCodeEmbeddingFailed, "failed to embed web content", err)
	}

	now := s.now()
	id := DocumentID(result.URL)
	doc := &WebDocument{
		ID:            id,
		URL:           result.URL,
		Domain:        result.Domain,
		Title:         result.Title,
		ContentHash:   hash,
		FullText:      text,
		TrustScore:    result.TrustScore,
		FetchedAt:     now,
		ExpiryAt:      now.Add(time.Duration(s.cfg.TTLDays) * 24 * time.Hour),
		LastRetrieved: now,
		Citation:      buildCitation(result),
		Method:        result.Method,
	}

	err = s.vectors.Upsert(ctx, []store.Point{{
		ID:     id,
		Vector: vecs[0],
		Payload: store.Payload{
			SourcePath:   result.URL,
			DocumentID:   id,
			DocumentType: string(store.DocumentTypeWeb),
			Text:         text,
		},
	}})
	if err != nil {
		return "", fmt.Errorf("failed to index web content: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO web_documents
			(id, url, domain, title, content_hash, full_text, trust_score,
			 fetched_at, expiry_at, times_retrieved, last_retrieved, citation, method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		doc.ID, doc.URL, doc.Domain, doc.Title, doc.ContentHash, doc.FullText,
		doc.TrustScore, doc.FetchedAt.Unix(), doc.ExpiryAt.Unix(),
		doc.LastRetrieved.Unix(), doc.Citation, doc.Method)
	if err != nil {
		_ = s.vectors.DeleteIDs(ctx, []string{id})
		return "", fmt.Errorf("failed to save web document: %w", err)
	}

	s.log.Info("webkb_ingested",
		slog.String("url", result.URL),
		slog.String("query", query),
		slog.Int("chars", len(text)))
	return id, nil
}

// Search finds stored documents near the query and bumps their access
// counters. filterExpired drops documents past their TTL.
func (s *Store) Search(ctx context.Context, query string, topK int, filterExpired bool) ([]*Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("webkb is closed")
	}
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query, "")
	if err != nil {
		return nil, err
	}

	// Oversample so expired documents do not starve the result set.
	fetchK := topK
	if filterExpired {
		fetchK = topK * 2
	}
	vecHits, err := s.vectors.Search(ctx, queryVec, fetchK, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	hits := make([]*Hit, 0, topK)
	touched := make([]string, 0, topK)
	for _, vh := range vecHits {
		if len(hits) == topK {
			break
		}
		doc, err := s.getBy(ctx, "id", vh.ID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		if filterExpired && doc.Expired(now) {
			continue
		}
		hits = append(hits, &Hit{
			ID:         doc.ID,
			URL:        doc.URL,
			Title:      doc.Title,
			Citation:   doc.Citation,
			Text:       doc.FullText,
			Score:      float64(vh.Score),
			TrustScore: doc.TrustScore,
		})
		touched = append(touched, doc.ID)
	}

	if len(touched) > 0 {
		if err := s.touch(ctx, touched...); err != nil {
			return nil, err
		}
	}
	return hits, nil
}

// CleanupExpired removes every document past its TTL, returning the count.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("webkb is closed")
	}
	return s.cleanupExpiredLocked(ctx)
}

func (s *Store) cleanupExpiredLocked(ctx context.Context) (int, error) {
	now := s.now().Unix()
	ids, err := s.collectIDs(ctx, `SELECT id FROM web_documents WHERE expiry_at < ?`, now)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.deleteDocs(ctx, ids); err != nil {
		return 0, err
	}
	s.log.Info("webkb_expired_swept", slog.Int("removed", len(ids)))
	return len(ids), nil
}

// ensureCapacity frees room for one more document: expired sweep first,
// then oldest-accessed eviction.
func (s *Store) ensureCapacity(ctx context.Context) error {
	count, err := s.countLocked(ctx)
	if err != nil {
		return err
	}
	if count < s.cfg.MaxSize {
		return nil
	}

	if _, err := s.cleanupExpiredLocked(ctx); err != nil {
		return err
	}
	count, err = s.countLocked(ctx)
	if err != nil {
		return err
	}
	if count < s.cfg.MaxSize {
		return nil
	}

	evict := count - s.cfg.MaxSize + 1
	ids, err := s.collectIDs(ctx,
		`SELECT id FROM web_documents ORDER BY last_retrieved ASC, id ASC LIMIT ?`, evict)
	if err != nil {
		return err
	}
	if err := s.deleteDocs(ctx, ids); err != nil {
		return err
	}
	s.log.Info("webkb_evicted", slog.Int("removed", len(ids)))
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("webkb is closed")
	}
	return s.countLocked(ctx)
}

// Stats returns document counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("webkb is closed")
	}

	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN expiry_at < ? THEN 1 ELSE 0 END), 0)
		FROM web_documents`, s.now().Unix())
	if err := row.Scan(&st.DocumentCount, &st.ExpiredCount); err != nil {
		return nil, fmt.Errorf("failed to read webkb stats: %w", err)
	}
	return &st, nil
}

// Close closes the metadata database. The vector collection is owned by
// the caller's wiring and closed there.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) countLocked(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM web_documents`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count web documents: %w", err)
	}
	return count, nil
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) deleteDocs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.vectors.DeleteIDs(ctx, ids); err != nil {
		return err
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM web_documents WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// touch bumps access counters for the given documents.
func (s *Store) touch(ctx context.Context, ids ...string) error {
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{s.now().Unix()}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE web_documents
		SET times_retrieved = times_retrieved + 1, last_retrieved = ?
		WHERE id IN (`+placeholders+`)`, args...)
	return err
}

func (s *Store) getBy(ctx context.Context, column, value string) (*WebDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, domain, title, content_hash, full_text, trust_score,
		       fetched_at, expiry_at, times_retrieved, last_retrieved, citation, method
		FROM web_documents WHERE `+column+` = ?`, value)

	var (
		doc                             WebDocument
		fetchedAt, expiryAt, lastRetrAt int64
	)
	err := row.Scan(&doc.ID, &doc.URL, &doc.Domain, &doc.Title, &doc.ContentHash,
		&doc.FullText, &doc.TrustScore, &fetchedAt, &expiryAt,
		&doc.TimesRetrieved, &lastRetrAt, &doc.Citation, &doc.Method)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read web document: %w", err)
	}
	doc.FetchedAt = time.Unix(fetchedAt, 0)
	doc.ExpiryAt = time.Unix(expiryAt, 0)
	doc.LastRetrieved = time.Unix(lastRetrAt, 0)
	return &doc, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// truncateHeadTail keeps the first two thirds and the final third of the
// budget when the text exceeds it. Documents usually front-load content
// but conclusions carry signal too.
func truncateHeadTail(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	const marker = "\n\n[...]\n\n"
	budget := maxChars - len(marker)
	head := budget * 2 / 3
	tail := budget - head
	return text[:head] + marker + text[len(text)-tail:]
}
