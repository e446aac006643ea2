package core

import (
	"context"
	"fmt"
	"strings"
)

const defaultListLimit = 100

// List returns a page of non-expired records ordered by creation time,
// newest first (ties broken by ID). With a TextFilter the whole live set is
// scanned and matched in memory, since persisted payloads may be
// codec-transformed and are not matchable in SQL.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ListResult{}, wrapError("list", ErrStoreClosed)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var result ListResult
	var err error
	if opts.TextFilter == "" {
		result, err = s.listPage(ctx, limit, offset)
	} else {
		result, err = s.listFiltered(ctx, limit, offset, opts.TextFilter)
	}
	if err != nil {
		return ListResult{}, wrapError("list", err)
	}

	s.touch(ctx, metaLastAccessed)
	return result, nil
}

func (s *SQLiteStore) listPage(ctx context.Context, limit, offset int) (ListResult, error) {
	now := timeNow().UTC().UnixNano()

	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE expires_at IS NULL OR expires_at > ?", now,
	).Scan(&total)
	if err != nil {
		return ListResult{}, fmt.Errorf("counting records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, vector, session_id, expires_at, created_at, updated_at
		FROM records
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, now, limit, offset)
	if err != nil {
		return ListResult{}, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	page := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := s.scanRecord(rows.Scan)
		if err != nil {
			return ListResult{}, err
		}
		page = append(page, *rec)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("iterating records: %w", err)
	}

	return ListResult{
		Rows:    page,
		Total:   total,
		HasMore: offset+len(page) < total,
	}, nil
}

func (s *SQLiteStore) listFiltered(ctx context.Context, limit, offset int, filter string) (ListResult, error) {
	matched, err := s.scanLive(ctx, "")
	if err != nil {
		return ListResult{}, err
	}

	needle := strings.ToLower(filter)
	kept := matched[:0]
	for _, rec := range matched {
		if strings.Contains(strings.ToLower(rec.Content), needle) ||
			strings.Contains(strings.ToLower(rec.Metadata.Text()), needle) {
			kept = append(kept, rec)
		}
	}

	total := len(kept)
	if offset >= total {
		return ListResult{Total: total, HasMore: false}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return ListResult{
		Rows:    kept[offset:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// scanLive loads every non-expired record ordered newest first, optionally
// restricted to one session.
func (s *SQLiteStore) scanLive(ctx context.Context, sessionID string) ([]Record, error) {
	now := timeNow().UTC().UnixNano()

	query := `
		SELECT id, content, metadata, vector, session_id, expires_at, created_at, updated_at
		FROM records
		WHERE (expires_at IS NULL OR expires_at > ?)`
	args := []any{now}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := s.scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}
