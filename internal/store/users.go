// ABOUTME: User accounts and role assignments
// ABOUTME: Roles are free-form strings; System Manager grants unrestricted tool access

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateUser inserts a user. An empty UserID is assigned a UUID; a zero
// CreatedAt is set to now. Returns ErrDuplicate if the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	if u.UserID == "" {
		u.UserID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, email, display_name, assistant_enabled, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.UserID, u.Email, u.DisplayName, boolToInt(u.AssistantEnabled), formatTime(u.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "user_id", u.UserID, "email", u.Email)
	return nil
}

const userColumns = `user_id, email, display_name, assistant_enabled, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var enabled int
	var createdAt string
	if err := row.Scan(&u.UserID, &u.Email, &u.DisplayName, &enabled, &createdAt); err != nil {
		return nil, err
	}
	u.AssistantEnabled = enabled != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(strings.ToLower(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by email.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetAssistantEnabled toggles whether the user may use the MCP endpoint.
func (s *SQLiteStore) SetAssistantEnabled(ctx context.Context, userID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET assistant_enabled = ? WHERE user_id = ?`, boolToInt(enabled), userID)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRole adds a role to a user. This operation is idempotent - adding an
// existing role succeeds silently.
func (s *SQLiteStore) AddRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_roles (user_id, role, created_at)
		VALUES (?, ?, ?)
	`, userID, role, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("adding role: %w", err)
	}

	s.logger.Debug("added role", "user_id", userID, "role", role)
	return nil
}

// RemoveRole removes a role from a user. Removing a role the user doesn't
// have succeeds silently.
func (s *SQLiteStore) RemoveRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role = ?`, userID, role)
	if err != nil {
		return fmt.Errorf("removing role: %w", err)
	}
	s.logger.Debug("removed role", "user_id", userID, "role", role)
	return nil
}

// ListRoles returns the user's roles in alphabetical order.
func (s *SQLiteStore) ListRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// HasRole checks whether the user has the given role.
func (s *SQLiteStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_roles WHERE user_id = ? AND role = ?`, userID, role).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking role: %w", err)
	}
	return true, nil
}
