// Package migrate keeps a store file's schema version consistent.
//
// Migrations are registered as an explicit, compile-time ordered list of
// descriptors. Applying and rolling back both run inside a single
// transaction: the schema version either advances fully or not at all.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrDuplicateVersion is returned when two registered migrations carry
	// the same version.
	ErrDuplicateVersion = errors.New("migrate: duplicate migration version")

	// ErrInvalidVersion is returned when a registered migration has a
	// non-positive version or a missing up/down function.
	ErrInvalidVersion = errors.New("migrate: invalid migration")
)

// Migration is one reversible schema change.
type Migration struct {
	Version int64
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
	Down    func(ctx context.Context, tx *sql.Tx) error
}

// Applied is one row of the migration ledger.
type Applied struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

// Runner applies and rolls back migrations against a single database.
type Runner struct {
	db         *sql.DB
	migrations []Migration
	logger     *zap.Logger
}

// NewRunner validates the migration set and binds it to db. The set must be
// sorted ascending by version; duplicate or malformed entries are rejected.
func NewRunner(db *sql.DB, migrations []Migration, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[int64]string, len(migrations))
	for _, m := range migrations {
		if m.Version <= 0 || m.Up == nil || m.Down == nil {
			return nil, fmt.Errorf("%w: version %d (%s)", ErrInvalidVersion, m.Version, m.Name)
		}
		if prev, ok := seen[m.Version]; ok {
			return nil, fmt.Errorf("%w: version %d used by %q and %q", ErrDuplicateVersion, m.Version, prev, m.Name)
		}
		seen[m.Version] = m.Name
	}
	if !sort.SliceIsSorted(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	}) {
		return nil, fmt.Errorf("%w: migrations must be sorted ascending by version", ErrInvalidVersion)
	}

	return &Runner{db: db, migrations: migrations, logger: logger}, nil
}

// ensureLedger creates the ledger table on first use.
func (r *Runner) ensureLedger(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating migration ledger: %w", err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, or 0 when no migration
// has been applied.
func (r *Runner) CurrentVersion(ctx context.Context) (int64, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return 0, err
	}

	var version sql.NullInt64
	err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return version.Int64, nil
}

// Migrate applies every pending migration in ascending order inside one
// transaction. Running it with nothing pending is a no-op.
func (r *Runner) Migrate(ctx context.Context) error {
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	var pending []Migration
	for _, m := range r.migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range pending {
		if err := m.Up(ctx, tx); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.Version, m.Name, err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migrations: %w", err)
	}

	r.logger.Info("applied migrations",
		zap.Int64("from", current),
		zap.Int64("to", pending[len(pending)-1].Version),
		zap.Int("count", len(pending)))
	return nil
}

// Rollback reverses applied migrations down to target, running each Down in
// descending order inside one transaction. A target at or above the current
// version is a no-op.
func (r *Runner) Rollback(ctx context.Context, target int64) error {
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if target >= current {
		return nil
	}

	var toRevert []Migration
	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if m.Version > target && m.Version <= current {
			toRevert = append(toRevert, m)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rollback transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range toRevert {
		if err := m.Down(ctx, tx); err != nil {
			return fmt.Errorf("reverting migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("removing ledger row %d: %w", m.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollback: %w", err)
	}

	r.logger.Info("rolled back migrations",
		zap.Int64("from", current),
		zap.Int64("to", target),
		zap.Int("count", len(toRevert)))
	return nil
}

// History returns the ledger, most recent first.
func (r *Runner) History(ctx context.Context) ([]Applied, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT version, name, applied_at FROM schema_migrations ORDER BY version DESC")
	if err != nil {
		return nil, fmt.Errorf("reading migration history: %w", err)
	}
	defer rows.Close()

	var history []Applied
	for rows.Next() {
		var a Applied
		var appliedAt string
		if err := rows.Scan(&a.Version, &a.Name, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		a.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing applied_at: %w", err)
		}
		history = append(history, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger rows: %w", err)
	}
	return history, nil
}
