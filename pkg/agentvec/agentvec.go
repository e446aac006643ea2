// Package agentvec is the client surface of the store: named per-tenant
// shards holding records with content, metadata and embeddings, searched
// by vector similarity or listed with pagination.
package agentvec

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CatchTheTornado/agentvec/pkg/codec"
	"github.com/CatchTheTornado/agentvec/pkg/core"
	"github.com/CatchTheTornado/agentvec/pkg/registry"
)

// Config locates the partition this handle operates on.
type Config struct {
	// DataDir is the root directory holding all partitions.
	DataDir string
	// Partition isolates one tenant's shards under DataDir.
	Partition string
	// SimilarityFn defaults to cosine similarity.
	SimilarityFn core.SimilarityFunc
}

// DB is a handle over one partition of stores.
type DB struct {
	manager  *registry.Manager
	embedder Embedder
	codec    codec.Codec
	logger   *zap.Logger
}

// Option configures optional DB collaborators.
type Option func(*DB)

// WithEmbedder enables text operations: embedding search in ListRecords,
// vector autofill in SaveRecord and GenerateEmbeddings.
func WithEmbedder(e Embedder) Option {
	return func(db *DB) { db.embedder = e }
}

// WithCodec routes every stored payload through c before it reaches disk.
func WithCodec(c codec.Codec) Option {
	return func(db *DB) { db.codec = c }
}

// WithLogger sets the structured logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// Open opens a partition, creating its directory when missing.
func Open(config Config, opts ...Option) (*DB, error) {
	db := &DB{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	manager, err := registry.NewManager(registry.Options{
		DataDir:      config.DataDir,
		Partition:    config.Partition,
		Codec:        db.codec,
		SimilarityFn: config.SimilarityFn,
		Logger:       db.logger,
	})
	if err != nil {
		return nil, err
	}
	db.manager = manager
	return db, nil
}

// Close releases every open shard handle.
func (db *DB) Close() error {
	return db.manager.Close()
}

// QueryFilesOptions filters and paginates QueryFiles.
type QueryFilesOptions struct {
	Query  string
	Limit  int
	Offset int
}

// QueryFilesResult is one page of stores with their stats.
type QueryFilesResult struct {
	Files   []registry.StoreInfo
	Total   int
	HasMore bool
}

// QueryFiles lists the partition's stores with item counts and timestamps.
func (db *DB) QueryFiles(ctx context.Context, opts QueryFilesOptions) (QueryFilesResult, error) {
	res, err := db.manager.List(ctx, registry.ListOptions{
		Query:  opts.Query,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		return QueryFilesResult{}, err
	}
	return QueryFilesResult{Files: res.Stores, Total: res.Total, HasMore: res.HasMore}, nil
}

// ListRecordsOptions selects between two read modes. When EmbeddingSearch
// is set the query text is embedded and the TopK most similar records are
// returned, ignoring Offset. Otherwise records are listed newest first.
type ListRecordsOptions struct {
	Limit           int
	Offset          int
	TextFilter      string
	EmbeddingSearch string
	TopK            int
	SessionID       string
}

// ListRecordsResult carries one page of records. Similarity is populated
// only in embedding-search mode.
type ListRecordsResult struct {
	Rows    []core.ScoredRecord
	Total   int
	HasMore bool
}

// ListRecords reads records from one store.
func (db *DB) ListRecords(ctx context.Context, file string, opts ListRecordsOptions) (ListRecordsResult, error) {
	store, err := db.manager.Get(ctx, file)
	if err != nil {
		return ListRecordsResult{}, err
	}
	if opts.EmbeddingSearch != "" {
		return db.searchRecords(ctx, store, opts)
	}
	res, err := store.List(ctx, core.ListOptions{
		Limit:      opts.Limit,
		Offset:     opts.Offset,
		TextFilter: opts.TextFilter,
	})
	if err != nil {
		return ListRecordsResult{}, err
	}
	rows := make([]core.ScoredRecord, len(res.Rows))
	for i, rec := range res.Rows {
		rows[i] = core.ScoredRecord{Record: rec}
	}
	return ListRecordsResult{Rows: rows, Total: res.Total, HasMore: res.HasMore}, nil
}

func (db *DB) searchRecords(ctx context.Context, store *core.SQLiteStore, opts ListRecordsOptions) (ListRecordsResult, error) {
	if db.embedder == nil {
		return ListRecordsResult{}, ErrEmbedderNotConfigured
	}
	query, err := db.embedder.Embed(ctx, opts.EmbeddingSearch)
	if err != nil {
		return ListRecordsResult{}, fmt.Errorf("agentvec: embed query: %w", err)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = opts.Limit
	}
	hits, err := store.SimilaritySearch(ctx, query, core.SearchOptions{
		TopK:      topK,
		SessionID: opts.SessionID,
	})
	if err != nil {
		return ListRecordsResult{}, err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return ListRecordsResult{}, err
	}
	return ListRecordsResult{Rows: hits, Total: stats.ItemCount}, nil
}

// SaveRecord upserts a record into the named store, creating the store on
// first use. An empty ID is replaced with a fresh uuid. A record without a
// vector is embedded from its content when an embedder is configured.
func (db *DB) SaveRecord(ctx context.Context, file string, rec *core.Record) error {
	store, err := db.manager.GetOrCreate(ctx, file)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if len(rec.Vector) == 0 && db.embedder != nil {
		vec, err := db.GenerateEmbeddings(ctx, rec.Content)
		if err != nil {
			return err
		}
		rec.Vector = vec
	}
	if err := store.Set(ctx, rec); err != nil {
		return err
	}
	db.logger.Debug("saved record", zap.String("store", file), zap.String("id", rec.ID))
	return nil
}

// GetStore exposes the underlying shard handle for direct vector
// operations on an existing store.
func (db *DB) GetStore(ctx context.Context, file string) (*core.SQLiteStore, error) {
	return db.manager.Get(ctx, file)
}

// GetRecord fetches one record by id, bypassing expiry.
func (db *DB) GetRecord(ctx context.Context, file, id string) (*core.Record, error) {
	store, err := db.manager.Get(ctx, file)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, id)
}

// DeleteRecord removes one record by id.
func (db *DB) DeleteRecord(ctx context.Context, file, id string) error {
	store, err := db.manager.Get(ctx, file)
	if err != nil {
		return err
	}
	return store.Delete(ctx, id)
}

// CreateStore creates an empty store, failing when the name is taken.
func (db *DB) CreateStore(ctx context.Context, name string) error {
	_, err := db.manager.Create(ctx, name)
	return err
}

// DeleteFile removes a store and everything in it.
func (db *DB) DeleteFile(ctx context.Context, file string) error {
	return db.manager.Delete(ctx, file)
}

// GenerateEmbeddings embeds content with the configured embedder.
func (db *DB) GenerateEmbeddings(ctx context.Context, content string) ([]float32, error) {
	if db.embedder == nil {
		return nil, ErrEmbedderNotConfigured
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyText
	}
	vec, err := db.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("agentvec: embed content: %w", err)
	}
	return vec, nil
}

// Sweep purges expired records from one store and reports how many went.
func (db *DB) Sweep(ctx context.Context, file string) (int64, error) {
	store, err := db.manager.Get(ctx, file)
	if err != nil {
		return 0, err
	}
	return store.Sweep(ctx)
}

// MigrateStore applies pending schema migrations to one store.
func (db *DB) MigrateStore(ctx context.Context, file string) error {
	store, err := db.manager.Get(ctx, file)
	if err != nil {
		return err
	}
	return store.Migrate(ctx)
}

// RollbackStore reverts one store's schema to the target version.
func (db *DB) RollbackStore(ctx context.Context, file string, target int64) error {
	store, err := db.manager.Get(ctx, file)
	if err != nil {
		return err
	}
	return store.Rollback(ctx, target)
}
