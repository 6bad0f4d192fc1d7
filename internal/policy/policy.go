// ABOUTME: Store-backed tool access predicates: tool enabled, role access, plugin enabled.
// ABOUTME: Missing configuration rows fall back to "enabled, Allow All".

package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

// Store is the subset of the store the predicates read.
type Store interface {
	GetToolConfig(ctx context.Context, toolName string) (*store.ToolConfig, error)
	GetToolRoleAccess(ctx context.Context, toolName string) (map[string]bool, error)
	PluginEnabled(ctx context.Context, name string) (bool, error)
}

// Predicate names, as they appear in logs.
const (
	NameToolEnabled   = "tool_enabled"
	NameRoleAccess    = "role_access"
	NamePluginEnabled = "plugin_enabled"
)

// Chain returns the predicates in evaluation order.
func Chain(s Store) []tools.Predicate {
	return []tools.Predicate{
		ToolEnabled(s),
		RoleAccess(s),
		PluginEnabled(s),
	}
}

// ToolEnabled denies tools whose configuration is disabled.
func ToolEnabled(s Store) tools.Predicate {
	return tools.NewPredicate(NameToolEnabled, func(ctx context.Context, _ tools.Caller, tool *tools.Descriptor) (bool, error) {
		cfg, err := toolConfig(ctx, s, tool)
		if err != nil {
			return false, err
		}
		return cfg.Enabled, nil
	})
}

// RoleAccess applies the tool's role access mode to the caller's roles.
func RoleAccess(s Store) tools.Predicate {
	return tools.NewPredicate(NameRoleAccess, func(ctx context.Context, caller tools.Caller, tool *tools.Descriptor) (bool, error) {
		cfg, err := toolConfig(ctx, s, tool)
		if err != nil {
			return false, err
		}
		return allowedByRole(ctx, s, cfg, caller)
	})
}

// PluginEnabled denies tools whose owning plugin is disabled.
func PluginEnabled(s Store) tools.Predicate {
	return tools.NewPredicate(NamePluginEnabled, func(ctx context.Context, _ tools.Caller, tool *tools.Descriptor) (bool, error) {
		if tool.Plugin == "" {
			return true, nil
		}
		return s.PluginEnabled(ctx, tool.Plugin)
	})
}

func toolConfig(ctx context.Context, s Store, tool *tools.Descriptor) (*store.ToolConfig, error) {
	cfg, err := s.GetToolConfig(ctx, tool.Name)
	if errors.Is(err, store.ErrNotFound) {
		return store.DefaultToolConfig(tool.Name, tool.Plugin), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config for %s: %w", tool.Name, err)
	}
	return cfg, nil
}

func allowedByRole(ctx context.Context, s Store, cfg *store.ToolConfig, caller tools.Caller) (bool, error) {
	switch cfg.RoleAccessMode {
	case store.AccessAllowAll, "":
		return true, nil
	case store.AccessRoleBased:
	default:
		return false, fmt.Errorf("unknown role access mode %q", cfg.RoleAccessMode)
	}

	if caller.HasRole(store.RoleSystemManager) {
		return true, nil
	}

	access, err := s.GetToolRoleAccess(ctx, cfg.ToolName)
	if err != nil {
		return false, fmt.Errorf("loading role access for %s: %w", cfg.ToolName, err)
	}
	for _, role := range caller.Roles {
		if access[role] {
			return true, nil
		}
	}
	return false, nil
}

// Status explains whether a caller may use a tool.
type Status struct {
	ToolName       string             `json:"tool_name"`
	UserID         string             `json:"user_id"`
	HasAccess      bool               `json:"has_access"`
	Enabled        bool               `json:"enabled"`
	PluginEnabled  bool               `json:"plugin_enabled"`
	RoleAccessMode store.AccessMode   `json:"role_access_mode"`
	Category       store.ToolCategory `json:"tool_category"`
	Configured     bool               `json:"configured"`
}

// Check evaluates every rule for one tool and reports each outcome.
func Check(ctx context.Context, s Store, caller tools.Caller, tool *tools.Descriptor) (*Status, error) {
	cfg, err := s.GetToolConfig(ctx, tool.Name)
	configured := err == nil
	if errors.Is(err, store.ErrNotFound) {
		cfg = store.DefaultToolConfig(tool.Name, tool.Plugin)
	} else if err != nil {
		return nil, fmt.Errorf("loading config for %s: %w", tool.Name, err)
	}

	pluginOn := true
	if tool.Plugin != "" {
		if pluginOn, err = s.PluginEnabled(ctx, tool.Plugin); err != nil {
			return nil, err
		}
	}

	byRole, err := allowedByRole(ctx, s, cfg, caller)
	if err != nil {
		return nil, err
	}

	return &Status{
		ToolName:       tool.Name,
		UserID:         caller.UserID,
		HasAccess:      cfg.Enabled && pluginOn && byRole,
		Enabled:        cfg.Enabled,
		PluginEnabled:  pluginOn,
		RoleAccessMode: cfg.RoleAccessMode,
		Category:       cfg.Category,
		Configured:     configured,
	}, nil
}
