package core

import (
	"context"
	"database/sql"

	"github.com/CatchTheTornado/agentvec/pkg/migrate"
)

// store_meta keys
const (
	metaDimension    = "dimension"
	metaCreatedAt    = "created_at"
	metaUpdatedAt    = "updated_at"
	metaLastAccessed = "last_accessed"
)

func execAll(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migrations returns the full ordered migration set for a shard file. The
// list is registered at compile time; ordering and versions are validated by
// migrate.NewRunner.
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version: 1,
			Name:    "create_records",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`CREATE TABLE records (
						id         TEXT PRIMARY KEY,
						content    BLOB NOT NULL,
						metadata   BLOB,
						vector     BLOB NOT NULL,
						created_at INTEGER NOT NULL,
						updated_at INTEGER NOT NULL
					)`,
					`CREATE INDEX idx_records_created_at ON records(created_at)`,
					`CREATE TABLE store_meta (
						key   TEXT PRIMARY KEY,
						value TEXT NOT NULL
					)`,
				)
			},
			Down: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`DROP TABLE store_meta`,
					`DROP INDEX idx_records_created_at`,
					`DROP TABLE records`,
				)
			},
		},
		{
			Version: 2,
			Name:    "add_session_scope",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`ALTER TABLE records ADD COLUMN session_id TEXT`,
					`CREATE INDEX idx_records_session ON records(session_id)`,
				)
			},
			Down: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`DROP INDEX idx_records_session`,
					`ALTER TABLE records DROP COLUMN session_id`,
				)
			},
		},
		{
			Version: 3,
			Name:    "add_expiry",
			Up: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`ALTER TABLE records ADD COLUMN expires_at INTEGER`,
					`CREATE INDEX idx_records_expires ON records(expires_at)`,
				)
			},
			Down: func(ctx context.Context, tx *sql.Tx) error {
				return execAll(ctx, tx,
					`DROP INDEX idx_records_expires`,
					`ALTER TABLE records DROP COLUMN expires_at`,
				)
			},
		},
	}
}
