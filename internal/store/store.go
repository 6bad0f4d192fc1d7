// ABOUTME: Domain types and sentinel errors for persisted users, keys, tool policy, and notes.
// ABOUTME: All SQLiteStore methods take a context and return ErrNotFound for missing rows.

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity doesn't exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint would be violated
var ErrDuplicate = errors.New("already exists")

// RoleSystemManager is the superuser role for tool access and the admin API.
const RoleSystemManager = "System Manager"

// ToolCategory classifies what a tool may do.
type ToolCategory string

const (
	CategoryReadOnly   ToolCategory = "read_only"
	CategoryWrite      ToolCategory = "write"
	CategoryReadWrite  ToolCategory = "read_write"
	CategoryPrivileged ToolCategory = "privileged"
)

// ValidToolCategories lists all valid tool categories
var ValidToolCategories = []ToolCategory{
	CategoryReadOnly,
	CategoryWrite,
	CategoryReadWrite,
	CategoryPrivileged,
}

// AccessMode controls how roles gate a tool.
type AccessMode string

const (
	AccessAllowAll  AccessMode = "Allow All"
	AccessRoleBased AccessMode = "Role Based"
)

// User is an account that may call tools.
type User struct {
	UserID           string
	Email            string
	DisplayName      string
	AssistantEnabled bool
	CreatedAt        time.Time
}

// APIKey is a key/secret credential. The secret itself is never stored.
type APIKey struct {
	Key        string
	UserID     string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// ToolConfig is the persisted policy for one tool. A tool without a row is
// enabled with AccessAllowAll.
type ToolConfig struct {
	ToolName       string
	PluginName     string
	Enabled        bool
	Category       ToolCategory
	RoleAccessMode AccessMode
	UpdatedAt      time.Time
}

// DefaultToolConfig returns the policy applied to tools without a row.
func DefaultToolConfig(toolName, pluginName string) *ToolConfig {
	return &ToolConfig{
		ToolName:       toolName,
		PluginName:     pluginName,
		Enabled:        true,
		Category:       CategoryReadOnly,
		RoleAccessMode: AccessAllowAll,
	}
}

// Plugin is the persisted enable flag for a group of tools.
type Plugin struct {
	Name      string
	Enabled   bool
	UpdatedAt time.Time
}

// Note is a per-user key/value pair.
type Note struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// ToolCall is one audited tools/call dispatch.
type ToolCall struct {
	CallID     string
	UserID     string
	ToolName   string
	IsError    bool
	DurationMS int64
	CreatedAt  time.Time
}
