package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Store persists query metrics to sqlite. Recording failures are returned
// but callers treat telemetry as best-effort.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewStore creates or opens the telemetry database. An empty path uses an
// in-memory database.
func NewStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

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

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize telemetry schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_metrics (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		ts_unix          INTEGER NOT NULL,
		query_hash       TEXT NOT NULL,
		total_ms         INTEGER NOT NULL,
		cache_ms         INTEGER NOT NULL,
		retrieve_ms      INTEGER NOT NULL,
		generate_ms      INTEGER NOT NULL,
		tier_local       INTEGER NOT NULL,
		tier_webkb       INTEGER NOT NULL,
		tier_web         INTEGER NOT NULL,
		cache_hit        INTEGER NOT NULL,
		web_consulted    INTEGER NOT NULL,
		tokens_prompt    INTEGER NOT NULL,
		tokens_answer    INTEGER NOT NULL,
		embedder_backend TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_query_metrics_ts ON query_metrics(ts_unix);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores one query's metrics.
func (s *Store) Record(ctx context.Context, m *QueryMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("telemetry store is closed")
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_metrics
			(ts_unix, query_hash, total_ms, cache_ms, retrieve_ms, generate_ms,
			 tier_local, tier_webkb, tier_web, cache_hit, web_consulted,
			 tokens_prompt, tokens_answer, embedder_backend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Unix(), m.QueryHash, m.TotalMS,
		m.Stages.Cache, m.Stages.Retrieve, m.Stages.Generate,
		m.Tiers.Local, m.Tiers.WebKB, m.Tiers.LiveWeb,
		boolToInt(m.CacheHit), boolToInt(m.WebConsulted),
		m.TokensPrompt, m.TokensAnswer, m.EmbedderBackend)
	return err
}

// Aggregates computes summary statistics over the recorded window.
func (s *Store) Aggregates(ctx context.Context) (*Aggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("telemetry store is closed")
	}

	agg := &Aggregates{}
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(cache_hit), 0),
		       COALESCE(AVG(tier_local > 0), 0),
		       COALESCE(AVG(tier_webkb > 0), 0),
		       COALESCE(AVG(tier_web > 0), 0)
		FROM query_metrics`)
	if err := row.Scan(&agg.QueryCount, &agg.CacheHitRate,
		&agg.TierUsage.Local, &agg.TierUsage.WebKB, &agg.TierUsage.LiveWeb); err != nil {
		return nil, err
	}
	if agg.QueryCount == 0 {
		return agg, nil
	}

	var err error
	if agg.P50MS, err = s.percentile(ctx, 0.50, agg.QueryCount); err != nil {
		return nil, err
	}
	if agg.P95MS, err = s.percentile(ctx, 0.95, agg.QueryCount); err != nil {
		return nil, err
	}
	return agg, nil
}

// percentile reads the nearest-rank latency percentile.
func (s *Store) percentile(ctx context.Context, p float64, count int) (int64, error) {
	offset := int(p * float64(count))
	if offset >= count {
		offset = count - 1
	}
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT total_ms FROM query_metrics ORDER BY total_ms LIMIT 1 OFFSET ?`,
		offset).Scan(&ms)
	return ms, err
}

// Prune deletes records older than the retention window and returns the
// number removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("telemetry store is closed")
	}

	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM query_metrics WHERE ts_unix < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close shuts down the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
