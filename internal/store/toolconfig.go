// ABOUTME: Per-tool policy rows, role access lists, and plugin enable flags
// ABOUTME: Missing rows mean "enabled, Allow All"; callers fall back to the defaults

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const toolConfigColumns = `tool_name, plugin_name, enabled, tool_category, role_access_mode, updated_at`

func scanToolConfig(row interface{ Scan(...any) error }) (*ToolConfig, error) {
	var c ToolConfig
	var enabled int
	var category, mode, updatedAt string
	if err := row.Scan(&c.ToolName, &c.PluginName, &enabled, &category, &mode, &updatedAt); err != nil {
		return nil, err
	}
	c.Enabled = enabled != 0
	c.Category = ToolCategory(category)
	c.RoleAccessMode = AccessMode(mode)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// GetToolConfig returns the stored policy for a tool, or ErrNotFound.
func (s *SQLiteStore) GetToolConfig(ctx context.Context, toolName string) (*ToolConfig, error) {
	c, err := scanToolConfig(s.db.QueryRowContext(ctx,
		`SELECT `+toolConfigColumns+` FROM tool_configs WHERE tool_name = ?`, toolName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tool config: %w", err)
	}
	return c, nil
}

// ListToolConfigs returns every stored tool policy keyed by tool name.
func (s *SQLiteStore) ListToolConfigs(ctx context.Context) (map[string]*ToolConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+toolConfigColumns+` FROM tool_configs`)
	if err != nil {
		return nil, fmt.Errorf("listing tool configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]*ToolConfig)
	for rows.Next() {
		c, err := scanToolConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tool config: %w", err)
		}
		out[c.ToolName] = c
	}
	return out, rows.Err()
}

// UpsertToolConfig creates or replaces a tool's policy.
func (s *SQLiteStore) UpsertToolConfig(ctx context.Context, c *ToolConfig) error {
	if c.Category == "" {
		c.Category = CategoryReadOnly
	}
	if c.RoleAccessMode == "" {
		c.RoleAccessMode = AccessAllowAll
	}
	c.UpdatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_configs (tool_name, plugin_name, enabled, tool_category, role_access_mode, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_name) DO UPDATE SET
			plugin_name = excluded.plugin_name,
			enabled = excluded.enabled,
			tool_category = excluded.tool_category,
			role_access_mode = excluded.role_access_mode,
			updated_at = excluded.updated_at
	`, c.ToolName, c.PluginName, boolToInt(c.Enabled), string(c.Category), string(c.RoleAccessMode), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting tool config: %w", err)
	}

	s.logger.Debug("updated tool config", "tool_name", c.ToolName, "enabled", c.Enabled, "mode", c.RoleAccessMode)
	return nil
}

// GetToolRoleAccess returns role -> allow_access for a tool.
func (s *SQLiteStore) GetToolRoleAccess(ctx context.Context, toolName string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, allow_access FROM tool_role_access WHERE tool_name = ?`, toolName)
	if err != nil {
		return nil, fmt.Errorf("listing tool role access: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]bool)
	for rows.Next() {
		var role string
		var allow int
		if err := rows.Scan(&role, &allow); err != nil {
			return nil, fmt.Errorf("scanning tool role access: %w", err)
		}
		out[role] = allow != 0
	}
	return out, rows.Err()
}

// SetToolRoleAccess replaces a tool's role access list.
func (s *SQLiteStore) SetToolRoleAccess(ctx context.Context, toolName string, access map[string]bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_role_access WHERE tool_name = ?`, toolName); err != nil {
		return fmt.Errorf("clearing tool role access: %w", err)
	}
	for role, allow := range access {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tool_role_access (tool_name, role, allow_access) VALUES (?, ?, ?)`,
			toolName, role, boolToInt(allow)); err != nil {
			return fmt.Errorf("inserting tool role access: %w", err)
		}
	}
	return tx.Commit()
}

// PluginEnabled reports whether a plugin is enabled. Plugins without a row are enabled.
func (s *SQLiteStore) PluginEnabled(ctx context.Context, name string) (bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx, `SELECT enabled FROM plugins WHERE name = ?`, name).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying plugin: %w", err)
	}
	return enabled != 0, nil
}

// SetPluginEnabled creates or updates a plugin's enable flag.
func (s *SQLiteStore) SetPluginEnabled(ctx context.Context, name string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plugins (name, enabled, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at
	`, name, boolToInt(enabled), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("updating plugin: %w", err)
	}
	s.logger.Debug("updated plugin", "plugin", name, "enabled", enabled)
	return nil
}

// ListPlugins returns stored plugin flags ordered by name.
func (s *SQLiteStore) ListPlugins(ctx context.Context) ([]*Plugin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, enabled, updated_at FROM plugins ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing plugins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Plugin
	for rows.Next() {
		var p Plugin
		var enabled int
		var updatedAt string
		if err := rows.Scan(&p.Name, &enabled, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning plugin: %w", err)
		}
		p.Enabled = enabled != 0
		p.UpdatedAt = parseTime(updatedAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}
