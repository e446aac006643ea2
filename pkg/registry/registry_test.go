package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agentvec/pkg/core"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Options{DataDir: t.TempDir(), Partition: "tenant-1"})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestValidateName(t *testing.T) {
	valid := []string{"notes", "my-store", "store_2", "a.b", "A9"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}
	invalid := []string{"", ".", "..", "a/b", "../escape", "a b", "sp€c"}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidStoreName, name)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	s, err := m.Create(ctx, "notes")
	require.NoError(t, err)
	require.FileExists(t, s.Path())

	_, err = m.Create(ctx, "notes")
	assert.ErrorIs(t, err, ErrStoreExists)
}

func TestCreateRejectsExistingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m, err := NewManager(Options{DataDir: dir, Partition: "t"})
	require.NoError(t, err)
	defer m.Close()

	// A shard left behind by an earlier process counts as existing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t", "old.db"), nil, 0o644))

	_, err = m.Create(ctx, "old")
	assert.ErrorIs(t, err, ErrStoreExists)
}

func TestGetOrCreateCachesHandle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	s1, err := m.GetOrCreate(ctx, "notes")
	require.NoError(t, err)
	s2, err := m.GetOrCreate(ctx, "notes")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}

func TestGetMissingStore(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetReopensExisting(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m1, err := NewManager(Options{DataDir: dir, Partition: "t"})
	require.NoError(t, err)
	s, err := m1.Create(ctx, "notes")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, &core.Record{ID: "a", Content: "hi", Vector: []float32{1, 0}}))
	require.NoError(t, m1.Close())

	m2, err := NewManager(Options{DataDir: dir, Partition: "t"})
	require.NoError(t, err)
	defer m2.Close()

	s2, err := m2.Get(ctx, "notes")
	require.NoError(t, err)
	got, err := s2.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
}

func TestListPaginationAndQuery(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	for _, name := range []string{"alpha", "beta", "notes-1", "notes-2"} {
		_, err := m.Create(ctx, name)
		require.NoError(t, err)
	}
	s, err := m.Get(ctx, "alpha")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, &core.Record{ID: "x", Content: "x", Vector: []float32{1}}))

	all, err := m.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.False(t, all.HasMore)
	require.Len(t, all.Stores, 4)
	assert.Equal(t, "alpha", all.Stores[0].Name)
	assert.Equal(t, 1, all.Stores[0].ItemCount)
	assert.Equal(t, 1, all.Stores[0].Dimension)

	page, err := m.List(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Stores, 2)
	assert.Equal(t, "beta", page.Stores[0].Name)
	assert.Equal(t, "notes-1", page.Stores[1].Name)

	filtered, err := m.List(ctx, ListOptions{Query: "NOTES"})
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.Total)
}

func TestDeleteRemovesShard(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	s, err := m.Create(ctx, "notes")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, &core.Record{ID: "a", Content: "a", Vector: []float32{1}}))
	path := s.Path()

	require.NoError(t, m.Delete(ctx, "notes"))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+"-wal")
	assert.NoFileExists(t, path+"-shm")

	assert.ErrorIs(t, m.Delete(ctx, "notes"), core.ErrNotFound)

	// The name is free for reuse with a clean slate.
	s2, err := m.Create(ctx, "notes")
	require.NoError(t, err)
	_, err = s2.Get(ctx, "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestManagerClose(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.Create(ctx, "notes")
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.GetOrCreate(ctx, "notes")
	assert.ErrorIs(t, err, ErrManagerClosed)
	_, err = m.List(ctx, ListOptions{})
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestPartitionIsolation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m1, err := NewManager(Options{DataDir: dir, Partition: "tenant-a"})
	require.NoError(t, err)
	defer m1.Close()
	m2, err := NewManager(Options{DataDir: dir, Partition: "tenant-b"})
	require.NoError(t, err)
	defer m2.Close()

	_, err = m1.Create(ctx, "notes")
	require.NoError(t, err)

	_, err = m2.Get(ctx, "notes")
	assert.ErrorIs(t, err, core.ErrNotFound)

	res, err := m2.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}
