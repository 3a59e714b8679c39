package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const cursorKey = "cursor"

// Cursor returns the stored polling cursor. ok is false when none has been
// saved yet.
//
// The cursor is opaque: it is the raw date string of the last action seen,
// exactly as Trello sent it.
func (s *Store) Cursor(ctx context.Context) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, cursorKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read cursor: %w", err)
	}
	return value, true, nil
}

// SetCursor stores the polling cursor.
func (s *Store) SetCursor(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, cursorKey, value, s.stamp())
	if err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}

// ClearCursor removes the stored cursor.
func (s *Store) ClearCursor(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, cursorKey); err != nil {
		return fmt.Errorf("clear cursor: %w", err)
	}
	return nil
}
