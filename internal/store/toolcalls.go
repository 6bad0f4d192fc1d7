// ABOUTME: Audit log of tools/call dispatches
// ABOUTME: Written best-effort by the MCP server; read back for admin stats

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RecordToolCall appends a call to the audit log.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, call *ToolCall) error {
	if call.CallID == "" {
		call.CallID = uuid.New().String()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (call_id, user_id, tool_name, is_error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, call.CallID, call.UserID, call.ToolName, boolToInt(call.IsError), call.DurationMS, formatTime(call.CreatedAt))
	if err != nil {
		return fmt.Errorf("recording tool call: %w", err)
	}
	return nil
}

// ListToolCalls returns the most recent calls, newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, limit int) ([]*ToolCall, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, user_id, tool_name, is_error, duration_ms, created_at
		FROM tool_calls
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var calls []*ToolCall
	for rows.Next() {
		var c ToolCall
		var isError int
		var createdAt string
		if err := rows.Scan(&c.CallID, &c.UserID, &c.ToolName, &isError, &c.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tool call: %w", err)
		}
		c.IsError = isError != 0
		c.CreatedAt = parseTime(createdAt)
		calls = append(calls, &c)
	}
	return calls, rows.Err()
}

// ToolCallCounts returns the number of recorded calls per tool.
func (s *SQLiteStore) ToolCallCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool_name, COUNT(*) FROM tool_calls GROUP BY tool_name`)
	if err != nil {
		return nil, fmt.Errorf("counting tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning tool call count: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}
