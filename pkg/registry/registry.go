// Package registry manages the lifecycle of per-tenant store shards.
// Each shard is a single SQLite file under <dataDir>/<partition>/, opened
// lazily and cached so every shard has at most one live handle.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CatchTheTornado/agentvec/pkg/codec"
	"github.com/CatchTheTornado/agentvec/pkg/core"
)

var (
	// ErrStoreExists is returned by Create when the shard file already exists.
	ErrStoreExists = errors.New("registry: store already exists")
	// ErrInvalidStoreName is returned for names that cannot form a safe file name.
	ErrInvalidStoreName = errors.New("registry: invalid store name")
	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("registry: manager is closed")
)

const shardExt = ".db"

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateName reports whether name is usable as a shard name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidStoreName, name)
	}
	return nil
}

// Options configures a Manager. Every shard it opens shares the same
// codec, similarity function and logger.
type Options struct {
	DataDir      string
	Partition    string
	Codec        codec.Codec
	SimilarityFn core.SimilarityFunc
	Logger       *zap.Logger
}

// StoreInfo describes one shard for listing purposes.
type StoreInfo struct {
	Name         string
	Path         string
	ItemCount    int
	Dimension    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAccessed time.Time
}

// ListOptions filters and paginates List.
type ListOptions struct {
	Query  string
	Limit  int
	Offset int
}

// ListResult is one page of shards.
type ListResult struct {
	Stores  []StoreInfo
	Total   int
	HasMore bool
}

// Manager owns the shard directory of a single partition.
type Manager struct {
	root   string
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	stores map[string]*core.SQLiteStore
	closed bool
}

// NewManager creates the partition directory and returns a manager for it.
func NewManager(opts Options) (*Manager, error) {
	if opts.DataDir == "" {
		return nil, errors.New("registry: data dir is required")
	}
	if opts.Partition == "" {
		return nil, errors.New("registry: partition is required")
	}
	if err := ValidateName(opts.Partition); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	root := filepath.Join(opts.DataDir, opts.Partition)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("registry: create partition dir: %w", err)
	}
	return &Manager{
		root:   root,
		opts:   opts,
		logger: opts.Logger,
		stores: make(map[string]*core.SQLiteStore),
	}, nil
}

// Root returns the partition directory.
func (m *Manager) Root() string { return m.root }

func (m *Manager) shardPath(name string) string {
	return filepath.Join(m.root, name+shardExt)
}

// Create opens a brand new shard. It fails with ErrStoreExists when a
// shard with this name is already on disk.
func (m *Manager) Create(ctx context.Context, name string) (*core.SQLiteStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, ok := m.stores[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrStoreExists, name)
	}
	if _, err := os.Stat(m.shardPath(name)); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrStoreExists, name)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("registry: stat shard: %w", err)
	}
	return m.openLocked(ctx, name)
}

// Get returns the handle of an existing shard, opening it on first use.
// A shard that is not on disk yields core.ErrNotFound.
func (m *Manager) Get(ctx context.Context, name string) (*core.SQLiteStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if s, ok := m.stores[name]; ok {
		return s, nil
	}
	if _, err := os.Stat(m.shardPath(name)); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("registry: store %q: %w", name, core.ErrNotFound)
		}
		return nil, fmt.Errorf("registry: stat shard: %w", err)
	}
	return m.openLocked(ctx, name)
}

// GetOrCreate returns the shard handle, materializing the shard on disk
// when it does not exist yet.
func (m *Manager) GetOrCreate(ctx context.Context, name string) (*core.SQLiteStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if s, ok := m.stores[name]; ok {
		return s, nil
	}
	return m.openLocked(ctx, name)
}

func (m *Manager) openLocked(ctx context.Context, name string) (*core.SQLiteStore, error) {
	s, err := core.Open(ctx, core.Config{
		Path:         m.shardPath(name),
		SimilarityFn: m.opts.SimilarityFn,
		Codec:        m.opts.Codec,
		Logger:       m.logger.With(zap.String("store", name)),
	})
	if err != nil {
		return nil, err
	}
	m.stores[name] = s
	m.logger.Debug("opened store", zap.String("store", name))
	return s, nil
}

// List enumerates shards on disk ordered by name. Query matches as a
// case-insensitive substring.
func (m *Manager) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ListResult{}, ErrManagerClosed
	}
	m.mu.Unlock()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return ListResult{}, fmt.Errorf("registry: read partition dir: %w", err)
	}
	var names []string
	query := strings.ToLower(opts.Query)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), shardExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), shardExt)
		if query != "" && !strings.Contains(strings.ToLower(name), query) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	total := len(names)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	page := names[offset:]
	if opts.Limit > 0 && len(page) > opts.Limit {
		page = page[:opts.Limit]
	}

	infos := make([]StoreInfo, 0, len(page))
	for _, name := range page {
		info, err := m.stat(ctx, name)
		if err != nil {
			return ListResult{}, err
		}
		infos = append(infos, info)
	}
	return ListResult{
		Stores:  infos,
		Total:   total,
		HasMore: offset+len(page) < total,
	}, nil
}

func (m *Manager) stat(ctx context.Context, name string) (StoreInfo, error) {
	s, err := m.GetOrCreate(ctx, name)
	if err != nil {
		return StoreInfo{}, err
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return StoreInfo{}, err
	}
	return StoreInfo{
		Name:         name,
		Path:         s.Path(),
		ItemCount:    stats.ItemCount,
		Dimension:    stats.Dimension,
		CreatedAt:    stats.CreatedAt,
		UpdatedAt:    stats.UpdatedAt,
		LastAccessed: stats.LastAccessed,
	}, nil
}

// Delete closes the shard handle and removes the shard file together with
// its WAL sidecars. Deleting an absent shard yields core.ErrNotFound.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if s, ok := m.stores[name]; ok {
		if err := s.Close(); err != nil {
			return fmt.Errorf("registry: close store %q: %w", name, err)
		}
		delete(m.stores, name)
	}
	path := m.shardPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("registry: store %q: %w", name, core.ErrNotFound)
		}
		return fmt.Errorf("registry: stat shard: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("registry: remove shard: %w", err)
	}
	for _, sidecar := range []string{path + "-wal", path + "-shm"} {
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("registry: remove sidecar: %w", err)
		}
	}
	m.logger.Info("deleted store", zap.String("store", name))
	return nil
}

// Close closes every open shard handle. The manager is unusable afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var firstErr error
	for name, s := range m.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("registry: close store %q: %w", name, err)
		}
		delete(m.stores, name)
	}
	return firstErr
}
