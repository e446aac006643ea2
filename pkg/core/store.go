// Package core implements the per-shard vector store: keyed records with
// attached embeddings over a single SQLite file, with brute-force similarity
// search, paginated listing and TTL-scoped lifecycles.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CatchTheTornado/agentvec/pkg/codec"
	"github.com/CatchTheTornado/agentvec/pkg/migrate"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Record is one stored entry: text content, structured metadata and its
// embedding vector, optionally scoped to a session and bounded by an expiry.
type Record struct {
	ID        string
	Content   string
	Metadata  Value
	Vector    []float32
	SessionID string
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScoredRecord is a Record annotated with its similarity to a query vector.
type ScoredRecord struct {
	Record
	Similarity float64
}

// ListOptions controls pagination and filtering of List.
type ListOptions struct {
	Limit  int
	Offset int
	// TextFilter keeps only records whose content or metadata contains the
	// substring (case-insensitive).
	TextFilter string
}

// ListResult is one page of records plus the total match count.
type ListResult struct {
	Rows    []Record
	Total   int
	HasMore bool
}

// SearchOptions controls SimilaritySearch.
type SearchOptions struct {
	TopK int
	// SessionID restricts the scan to records of one session when non-empty.
	SessionID string
}

// Stats describes a store for directory-level listings.
type Stats struct {
	ItemCount    int
	Dimension    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAccessed time.Time
}

// Config configures a store.
type Config struct {
	// Path is the backing SQLite file. Parent directories are created.
	Path string

	// SimilarityFn scores candidate vectors against the query.
	// Default: CosineSimilarity.
	SimilarityFn SimilarityFunc

	// Codec transforms persisted payload bytes. Default: codec.Nop.
	Codec codec.Codec

	// Logger receives structured logs. Default: zap.NewNop().
	Logger *zap.Logger
}

// SQLiteStore is a single shard backed by one SQLite file.
//
// Writes (Set, Delete, Sweep, Rollback) are mutually exclusive via the store
// lock; reads proceed concurrently with each other.
type SQLiteStore struct {
	db           *sql.DB
	config       Config
	codec        codec.Codec
	logger       *zap.Logger
	runner       *migrate.Runner
	similarityFn SimilarityFunc

	mu     sync.RWMutex
	closed bool
	dim    int
}

// Open opens or creates the store at config.Path, bringing its schema to the
// current version.
func Open(ctx context.Context, config Config) (*SQLiteStore, error) {
	if config.Path == "" {
		return nil, wrapError("open", fmt.Errorf("database path cannot be empty"))
	}
	if config.SimilarityFn == nil {
		config.SimilarityFn = CosineSimilarity
	}
	if config.Codec == nil {
		config.Codec = codec.Nop{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &SQLiteStore{
		config:       config,
		codec:        config.Codec,
		logger:       config.Logger.With(zap.String("store", filepath.Base(config.Path))),
		similarityFn: config.SimilarityFn,
	}
	if err := s.init(ctx); err != nil {
		return nil, wrapError("open", err)
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.config.Path), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.config.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// WAL for read concurrency, busy_timeout instead of immediate lock errors.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s.db = db

	runner, err := migrate.NewRunner(db, Migrations(), s.logger)
	if err != nil {
		db.Close()
		return err
	}
	s.runner = runner

	if err := runner.Migrate(ctx); err != nil {
		db.Close()
		return err
	}

	if err := s.seedMeta(ctx); err != nil {
		db.Close()
		return err
	}

	dim, err := s.loadDimension(ctx)
	if err != nil {
		db.Close()
		return err
	}
	s.dim = dim

	s.logger.Debug("store opened", zap.String("path", s.config.Path), zap.Int("dimension", dim))
	return nil
}

// seedMeta initializes bookkeeping rows if not already set.
func (s *SQLiteStore) seedMeta(ctx context.Context) error {
	now := strconv.FormatInt(timeNow().UTC().UnixNano(), 10)
	for _, kv := range [][2]string{
		{metaCreatedAt, now},
		{metaUpdatedAt, now},
		{metaLastAccessed, now},
	} {
		_, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO store_meta (key, value) VALUES (?, ?)", kv[0], kv[1])
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", kv[0], err)
		}
	}
	return nil
}

func (s *SQLiteStore) loadDimension(ctx context.Context) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = ?", metaDimension).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading stored dimension: %w", err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing stored dimension %q: %w", value, err)
	}
	return dim, nil
}

// Dimension returns the embedding dimension established by the first write,
// or 0 when the store has never been written.
func (s *SQLiteStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Path returns the backing file path.
func (s *SQLiteStore) Path() string {
	return s.config.Path
}

func (s *SQLiteStore) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing meta key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) getMetaTime(ctx context.Context, key string) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading meta key %q: %w", key, err)
	}
	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing meta key %q: %w", key, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

// touch updates a bookkeeping timestamp; failures are logged, not propagated,
// so stats staleness never breaks a data operation.
func (s *SQLiteStore) touch(ctx context.Context, key string) {
	now := strconv.FormatInt(timeNow().UTC().UnixNano(), 10)
	if err := s.setMeta(ctx, key, now); err != nil {
		s.logger.Warn("failed to update store timestamp", zap.String("key", key), zap.Error(err))
	}
}
