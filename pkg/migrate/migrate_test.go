package migrate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func execMigration(stmt string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt)
		return err
	}
}

func testMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_items",
			Up:      execMigration("CREATE TABLE items (id TEXT PRIMARY KEY)"),
			Down:    execMigration("DROP TABLE items"),
		},
		{
			Version: 2,
			Name:    "add_label",
			Up:      execMigration("ALTER TABLE items ADD COLUMN label TEXT"),
			Down:    execMigration("ALTER TABLE items DROP COLUMN label"),
		},
		{
			Version: 3,
			Name:    "index_label",
			Up:      execMigration("CREATE INDEX idx_items_label ON items(label)"),
			Down:    execMigration("DROP INDEX idx_items_label"),
		},
	}
}

func TestNewRunnerRejectsDuplicates(t *testing.T) {
	db := openTestDB(t)
	ms := testMigrations()
	ms[2].Version = 2

	_, err := NewRunner(db, ms, nil)
	assert.ErrorIs(t, err, ErrDuplicateVersion)
}

func TestNewRunnerRejectsUnsorted(t *testing.T) {
	db := openTestDB(t)
	ms := testMigrations()
	ms[0], ms[2] = ms[2], ms[0]

	_, err := NewRunner(db, ms, nil)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestNewRunnerRejectsMissingDown(t *testing.T) {
	db := openTestDB(t)
	ms := testMigrations()
	ms[1].Down = nil

	_, err := NewRunner(db, ms, nil)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestMigrateAppliesAllPending(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r, err := NewRunner(db, testMigrations(), nil)
	require.NoError(t, err)

	v, err := r.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, r.Migrate(ctx))

	v, err = r.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	// Schema really changed.
	_, err = db.ExecContext(ctx, "INSERT INTO items (id, label) VALUES ('a', 'x')")
	require.NoError(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r, err := NewRunner(db, testMigrations(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Migrate(ctx))
	require.NoError(t, r.Migrate(ctx))

	v, err := r.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	history, err := r.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestMigrateFailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ms := testMigrations()
	boom := errors.New("boom")
	ms[2].Up = func(ctx context.Context, tx *sql.Tx) error { return boom }

	r, err := NewRunner(db, ms, nil)
	require.NoError(t, err)

	err = r.Migrate(ctx)
	assert.ErrorIs(t, err, boom)

	// No partial advance: versions 1 and 2 must not be recorded either.
	v, err := r.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	var count int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'items'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRollbackDescendsToTarget(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r, err := NewRunner(db, testMigrations(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Migrate(ctx))

	require.NoError(t, r.Rollback(ctx, 1))

	v, err := r.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	history, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].Version)
}

func TestRollbackAboveCurrentIsNoop(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r, err := NewRunner(db, testMigrations(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Migrate(ctx))

	require.NoError(t, r.Rollback(ctx, 3))
	require.NoError(t, r.Rollback(ctx, 7))

	v, err := r.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestRollbackThenMigrateRestores(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r, err := NewRunner(db, testMigrations(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Migrate(ctx))

	require.NoError(t, r.Rollback(ctx, 0))
	v, err := r.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), v)

	require.NoError(t, r.Migrate(ctx))
	v, err = r.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestHistoryMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r, err := NewRunner(db, testMigrations(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Migrate(ctx))

	history, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(3), history[0].Version)
	assert.Equal(t, int64(1), history[2].Version)
	assert.Equal(t, "index_label", history[0].Name)
	assert.False(t, history[0].AppliedAt.IsZero())
}
