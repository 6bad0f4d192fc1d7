// ABOUTME: API key credentials for "token <key>:<secret>" authentication
// ABOUTME: Secrets are bcrypt-hashed and only returned once, at creation

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidSecret is returned when a key exists but the secret doesn't match.
var ErrInvalidSecret = errors.New("invalid api secret")

const (
	apiKeyBytes    = 8
	apiSecretBytes = 16
)

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateAPIKey generates a key/secret pair for the user and stores the
// secret's hash. The plaintext secret is returned exactly once.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, userID string) (key, secret string, err error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return "", "", err
	}

	key, err = randomHex(apiKeyBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating key: %w", err)
	}
	secret, err = randomHex(apiSecretBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating secret: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing secret: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (api_key, secret_hash, user_id, created_at)
		VALUES (?, ?, ?, ?)
	`, key, string(hash), userID, formatTime(s.now()))
	if err != nil {
		return "", "", fmt.Errorf("inserting api key: %w", err)
	}

	s.logger.Info("created api key", "user_id", userID, "api_key", key)
	return key, secret, nil
}

// VerifyAPIKey checks a key/secret pair and returns the owning user's ID.
// Returns ErrNotFound for unknown keys and ErrInvalidSecret for a bad secret.
func (s *SQLiteStore) VerifyAPIKey(ctx context.Context, key, secret string) (string, error) {
	var hash, userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT secret_hash, user_id FROM api_keys WHERE api_key = ?`, key).Scan(&hash, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying api key: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return "", ErrInvalidSecret
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE api_key = ?`, formatTime(s.now()), key); err != nil {
		s.logger.Warn("failed to record api key use", "api_key", key, "error", err)
	}
	return userID, nil
}

// ListAPIKeys returns the user's keys, newest first.
func (s *SQLiteStore) ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT api_key, user_id, created_at, last_used_at
		FROM api_keys WHERE user_id = ?
		ORDER BY created_at DESC, api_key ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []*APIKey
	for rows.Next() {
		var k APIKey
		var createdAt string
		var lastUsed sql.NullString
		if err := rows.Scan(&k.Key, &k.UserID, &createdAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scanning api key: %w", err)
		}
		k.CreatedAt = parseTime(createdAt)
		if lastUsed.Valid {
			t := parseTime(lastUsed.String)
			k.LastUsedAt = &t
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// DeleteAPIKey revokes a key.
func (s *SQLiteStore) DeleteAPIKey(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE api_key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
