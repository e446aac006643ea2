package core

import (
	"context"

	"github.com/CatchTheTornado/agentvec/pkg/migrate"
)

// Close closes the store. Further calls on the store fail with
// ErrStoreClosed; Close itself is idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return wrapError("close", err)
	}
	s.logger.Debug("store closed")
	return nil
}

// Version returns the store's current schema version.
func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, wrapError("version", ErrStoreClosed)
	}
	return s.runner.CurrentVersion(ctx)
}

// Migrate applies pending schema migrations. Open already migrates; this is
// the explicit maintenance entry point and is a no-op on a current store.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("migrate", ErrStoreClosed)
	}
	return s.runner.Migrate(ctx)
}

// Rollback rewinds the schema to target. Rolling below the current feature
// set removes the backing columns, so data operations on this handle may fail
// until Migrate is run again; intended for maintenance windows.
func (s *SQLiteStore) Rollback(ctx context.Context, target int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("rollback", ErrStoreClosed)
	}
	return s.runner.Rollback(ctx, target)
}

// History returns the applied-migration ledger, most recent first.
func (s *SQLiteStore) History(ctx context.Context) ([]migrate.Applied, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("history", ErrStoreClosed)
	}
	return s.runner.History(ctx)
}
