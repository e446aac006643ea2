package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/CatchTheTornado/agentvec/internal/encoding"
)

// Set inserts or overwrites a record by ID.
//
// The first write to an empty store establishes the store's embedding
// dimension; subsequent writes with a different vector length fail with
// ErrDimensionMismatch. On overwrite the original CreatedAt is preserved and
// UpdatedAt is refreshed. The stored CreatedAt/UpdatedAt are written back
// into rec.
func (s *SQLiteStore) Set(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("set", ErrStoreClosed)
	}
	if rec == nil || rec.ID == "" {
		return wrapError("set", fmt.Errorf("%w: record ID cannot be empty", ErrValidation))
	}
	if err := encoding.ValidateVector(rec.Vector); err != nil {
		return wrapError("set", fmt.Errorf("%w: %v", ErrValidation, err))
	}

	incomingDim := len(rec.Vector)
	if s.dim != 0 && incomingDim != s.dim {
		return wrapError("set", fmt.Errorf("%w: store expects %d, got %d", ErrDimensionMismatch, s.dim, incomingDim))
	}

	content, metadata, vector, err := s.encodeRecord(rec)
	if err != nil {
		return wrapError("set", err)
	}

	var expiresAt sql.NullInt64
	if rec.ExpiresAt != nil {
		expiresAt.Int64 = rec.ExpiresAt.UTC().UnixNano()
		expiresAt.Valid = true
	}
	var sessionID sql.NullString
	if rec.SessionID != "" {
		sessionID.String = rec.SessionID
		sessionID.Valid = true
	}

	now := timeNow().UTC().UnixNano()

	// The record and the dimension it establishes commit together: a failed
	// first write must leave the store without a pinned dimension.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("set", fmt.Errorf("beginning write transaction: %w", err))
	}
	defer tx.Rollback()

	var createdAt, updatedAt int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO records (id, content, metadata, vector, session_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content    = excluded.content,
			metadata   = excluded.metadata,
			vector     = excluded.vector,
			session_id = excluded.session_id,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
		RETURNING created_at, updated_at`,
		rec.ID, content, metadata, vector, sessionID, expiresAt, now, now,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return wrapError("set", fmt.Errorf("failed to upsert record: %w", err))
	}

	if s.dim == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO store_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			metaDimension, strconv.Itoa(incomingDim))
		if err != nil {
			return wrapError("set", fmt.Errorf("writing store dimension: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("set", fmt.Errorf("committing write: %w", err))
	}

	if s.dim == 0 {
		s.dim = incomingDim
		s.logger.Info("established store dimension", zap.Int("dimension", incomingDim))
	}

	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()

	s.touch(ctx, metaUpdatedAt)
	s.logger.Debug("record set", zap.String("id", rec.ID))
	return nil
}

// Get retrieves a record by ID. Expired records are returned too: direct
// lookup bypasses expiry filtering so records stay inspectable until swept.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get", ErrStoreClosed)
	}
	if id == "" {
		return nil, wrapError("get", fmt.Errorf("%w: record ID cannot be empty", ErrValidation))
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, metadata, vector, session_id, expires_at, created_at, updated_at
		FROM records WHERE id = ?`, id)

	rec, err := s.scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, wrapError("get", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get", err)
	}

	s.touch(ctx, metaLastAccessed)
	return rec, nil
}

// Delete removes a record by ID. A missing ID is an error (ErrNotFound).
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete", ErrStoreClosed)
	}
	if id == "" {
		return wrapError("delete", fmt.Errorf("%w: record ID cannot be empty", ErrValidation))
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return wrapError("delete", fmt.Errorf("failed to delete record: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapError("delete", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return wrapError("delete", ErrNotFound)
	}

	s.touch(ctx, metaUpdatedAt)
	s.logger.Debug("record deleted", zap.String("id", id))
	return nil
}

// Sweep purges records whose expiry has passed and returns the purge count.
// Read paths only filter expired records; nothing calls Sweep implicitly.
func (s *SQLiteStore) Sweep(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, wrapError("sweep", ErrStoreClosed)
	}

	now := timeNow().UTC().UnixNano()
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return 0, wrapError("sweep", fmt.Errorf("failed to purge expired records: %w", err))
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, wrapError("sweep", fmt.Errorf("failed to get rows affected: %w", err))
	}

	if purged > 0 {
		s.touch(ctx, metaUpdatedAt)
		s.logger.Info("swept expired records", zap.Int64("purged", purged))
	}
	return purged, nil
}

// Stats returns the live item count and bookkeeping timestamps.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}, wrapError("stats", ErrStoreClosed)
	}

	var stats Stats
	stats.Dimension = s.dim

	now := timeNow().UTC().UnixNano()
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE expires_at IS NULL OR expires_at > ?", now,
	).Scan(&stats.ItemCount)
	if err != nil {
		return Stats{}, wrapError("stats", fmt.Errorf("counting records: %w", err))
	}

	for key, dst := range map[string]*time.Time{
		metaCreatedAt:    &stats.CreatedAt,
		metaUpdatedAt:    &stats.UpdatedAt,
		metaLastAccessed: &stats.LastAccessed,
	} {
		t, err := s.getMetaTime(ctx, key)
		if err != nil {
			return Stats{}, wrapError("stats", err)
		}
		*dst = t
	}

	return stats, nil
}

// encodeRecord routes content, metadata and vector through the codec.
func (s *SQLiteStore) encodeRecord(rec *Record) (content, metadata, vector []byte, err error) {
	content, err = s.codec.Encode([]byte(rec.Content))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding content: %w", err)
	}

	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	metadata, err = s.codec.Encode(metaJSON)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding metadata: %w", err)
	}

	vecBlob, err := encoding.EncodeVector(rec.Vector)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	vector, err = s.codec.Encode(vecBlob)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding vector: %w", err)
	}

	return content, metadata, vector, nil
}

// scanRecord decodes one row. scan must target the column order
// id, content, metadata, vector, session_id, expires_at, created_at, updated_at.
func (s *SQLiteStore) scanRecord(scan func(dest ...any) error) (*Record, error) {
	var (
		rec       Record
		content   []byte
		metadata  []byte
		vector    []byte
		sessionID sql.NullString
		expiresAt sql.NullInt64
		createdAt int64
		updatedAt int64
	)

	err := scan(&rec.ID, &content, &metadata, &vector, &sessionID, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	raw, err := s.codec.Decode(content)
	if err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	rec.Content = string(raw)

	if metadata != nil {
		metaJSON, err := s.codec.Decode(metadata)
		if err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("parsing metadata: %w", err)
		}
	}

	vecBlob, err := s.codec.Decode(vector)
	if err != nil {
		return nil, fmt.Errorf("decoding vector: %w", err)
	}
	rec.Vector, err = encoding.DecodeVector(vecBlob)
	if err != nil {
		return nil, fmt.Errorf("parsing vector: %w", err)
	}

	if sessionID.Valid {
		rec.SessionID = sessionID.String
	}
	if expiresAt.Valid {
		t := time.Unix(0, expiresAt.Int64).UTC()
		rec.ExpiresAt = &t
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return &rec, nil
}
