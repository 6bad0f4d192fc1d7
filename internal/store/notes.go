// ABOUTME: Per-user notes backing the notes tool plugin
// ABOUTME: Keys are unique per user; SetNote upserts

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetNote creates or updates a note.
func (s *SQLiteStore) SetNote(ctx context.Context, note *Note) error {
	note.UpdatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, note.UserID, note.Key, note.Value, formatTime(note.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving note: %w", err)
	}
	return nil
}

// GetNote retrieves a note by user and key.
func (s *SQLiteStore) GetNote(ctx context.Context, userID, key string) (*Note, error) {
	var n Note
	var updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, key, value, updated_at
		FROM notes WHERE user_id = ? AND key = ?
	`, userID, key).Scan(&n.UserID, &n.Key, &n.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying note: %w", err)
	}

	n.UpdatedAt = parseTime(updatedAt)
	return &n, nil
}

// ListNotes lists all notes for a user ordered by key.
func (s *SQLiteStore) ListNotes(ctx context.Context, userID string) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, key, value, updated_at
		FROM notes WHERE user_id = ?
		ORDER BY key ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []*Note
	for rows.Next() {
		var n Note
		var updatedAt string
		if err := rows.Scan(&n.UserID, &n.Key, &n.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.UpdatedAt = parseTime(updatedAt)
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// DeleteNote deletes a note by user and key.
func (s *SQLiteStore) DeleteNote(ctx context.Context, userID, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
