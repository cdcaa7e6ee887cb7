package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteCatalog implements Catalog on SQLite. It is the O(1) lookup table
// that lets directory ingest classify a file as unchanged without touching
// the vector index.
type SQLiteCatalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ Catalog = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog creates or opens the document catalog. If path is empty,
// an in-memory database is used.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	c := &SQLiteCatalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		source_path   TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL,
		content_hash  TEXT NOT NULL,
		mtime_unix    INTEGER NOT NULL,
		document_type TEXT NOT NULL,
		confidence    REAL NOT NULL DEFAULT 0,
		chunk_count   INTEGER NOT NULL DEFAULT 0,
		ingested_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := c.db.Exec(schema)
	return err
}

// SaveDocument inserts or replaces a catalog row.
func (c *SQLiteCatalog) SaveDocument(ctx context.Context, doc *Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("catalog is closed")
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents
			(source_path, document_id, content_hash, mtime_unix, document_type, confidence, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			document_id = excluded.document_id,
			content_hash = excluded.content_hash,
			mtime_unix = excluded.mtime_unix,
			document_type = excluded.document_type,
			confidence = excluded.confidence,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at`,
		doc.SourcePath, doc.DocumentID, doc.ContentHash, doc.MTime.Unix(),
		string(doc.Type), doc.Confidence, doc.ChunkCount, doc.IngestedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocument returns the catalog row for a source path, or nil if the
// document has never been ingested.
func (c *SQLiteCatalog) GetDocument(ctx context.Context, sourcePath string) (*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT source_path, document_id, content_hash, mtime_unix, document_type, confidence, chunk_count, ingested_at
		FROM documents WHERE source_path = ?`, sourcePath)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// DeleteDocument removes a catalog row. Deleting a missing row is a no-op.
func (c *SQLiteCatalog) DeleteDocument(ctx context.Context, sourcePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("catalog is closed")
	}

	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE source_path = ?`, sourcePath)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ListDocuments returns all catalog rows ordered by source path.
func (c *SQLiteCatalog) ListDocuments(ctx context.Context) ([]*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT source_path, document_id, content_hash, mtime_unix, document_type, confidence, chunk_count, ingested_at
		FROM documents ORDER BY source_path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// Stats returns document and chunk counts.
func (c *SQLiteCatalog) Stats(ctx context.Context) (*CatalogStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	var stats CatalogStats
	row := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(chunk_count), 0) FROM documents`)
	if err := row.Scan(&stats.DocumentCount, &stats.ChunkCount); err != nil {
		return nil, fmt.Errorf("failed to read catalog stats: %w", err)
	}
	return &stats, nil
}

// Close closes the database.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc        Document
		docType    string
		mtimeUnix  int64
		ingestedAt int64
	)
	err := row.Scan(&doc.SourcePath, &doc.DocumentID, &doc.ContentHash, &mtimeUnix,
		&docType, &doc.Confidence, &doc.ChunkCount, &ingestedAt)
	if err != nil {
		return nil, err
	}
	doc.MTime = time.Unix(mtimeUnix, 0)
	doc.Type = DocumentType(docType)
	doc.IngestedAt = time.Unix(ingestedAt, 0)
	return &doc, nil
}
