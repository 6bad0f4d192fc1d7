// ABOUTME: Admin handlers for tool configuration, plugin toggles and statistics.
// ABOUTME: Tools are listed grouped by plugin with their effective configuration.

package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/samber/lo"

	"github.com/2389/assistant-core/internal/policy"
	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

// ToolView is one tool in the admin listing.
type ToolView struct {
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Plugin         string             `json:"plugin"`
	Enabled        bool               `json:"enabled"`
	Configured     bool               `json:"configured"`
	Category       store.ToolCategory `json:"tool_category"`
	RoleAccessMode store.AccessMode   `json:"role_access_mode"`
	Roles          map[string]bool    `json:"roles"`
}

// PluginView groups tools under their plugin.
type PluginView struct {
	Name    string     `json:"name"`
	Enabled bool       `json:"enabled"`
	Tools   []ToolView `json:"tools"`
}

type updateToolRequest struct {
	Enabled        *bool           `json:"enabled"`
	Category       *string         `json:"tool_category" validate:"omitempty,oneof=read_only write read_write privileged"`
	RoleAccessMode *string         `json:"role_access_mode"`
	Roles          map[string]bool `json:"roles"`
}

type updatePluginRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// findTool looks name up in the unfiltered tool source.
func (h *Handler) findTool(ctx context.Context, name string) (*tools.Descriptor, error) {
	all, err := h.tools.Tools(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := lo.Find(all, func(d *tools.Descriptor) bool { return d.Name == name })
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

// toolViews returns every tool with its effective configuration, in source order.
func (h *Handler) toolViews(ctx context.Context) ([]ToolView, error) {
	all, err := h.tools.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tools: %w", err)
	}
	configs, err := h.store.ListToolConfigs(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]ToolView, 0, len(all))
	for _, d := range all {
		cfg, configured := configs[d.Name]
		if !configured {
			cfg = store.DefaultToolConfig(d.Name, d.Plugin)
		}
		roles, err := h.store.GetToolRoleAccess(ctx, d.Name)
		if err != nil {
			return nil, err
		}
		views = append(views, ToolView{
			Name:           d.Name,
			Description:    d.Description,
			Plugin:         d.Plugin,
			Enabled:        cfg.Enabled,
			Configured:     configured,
			Category:       cfg.Category,
			RoleAccessMode: cfg.RoleAccessMode,
			Roles:          roles,
		})
	}
	return views, nil
}

// handleListTools returns every tool grouped by plugin, plugins sorted by name.
func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	views, err := h.toolViews(r.Context())
	if err != nil {
		h.storeError(w, "list tools", err)
		return
	}

	grouped := lo.GroupBy(views, func(v ToolView) string { return v.Plugin })
	names := lo.Keys(grouped)
	sort.Strings(names)

	plugins := make([]PluginView, 0, len(names))
	for _, name := range names {
		enabled := true
		if name != "" {
			if enabled, err = h.store.PluginEnabled(r.Context(), name); err != nil {
				h.storeError(w, "plugin enabled", err)
				return
			}
		}
		plugins = append(plugins, PluginView{Name: name, Enabled: enabled, Tools: grouped[name]})
	}

	writeJSON(w, http.StatusOK, map[string]any{"plugins": plugins, "total": len(views)})
}

// handleUpdateTool updates a tool's configuration and, optionally, its role access list.
func (h *Handler) handleUpdateTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req updateToolRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.RoleAccessMode != nil {
		switch store.AccessMode(*req.RoleAccessMode) {
		case store.AccessAllowAll, store.AccessRoleBased:
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("role_access_mode must be %q or %q", store.AccessAllowAll, store.AccessRoleBased))
			return
		}
	}

	ctx := r.Context()
	d, err := h.findTool(ctx, name)
	if err != nil {
		h.storeError(w, "find tool", err)
		return
	}

	cfg, err := h.store.GetToolConfig(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		cfg = store.DefaultToolConfig(d.Name, d.Plugin)
	} else if err != nil {
		h.storeError(w, "get tool config", err)
		return
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Category != nil {
		cfg.Category = store.ToolCategory(*req.Category)
	}
	if req.RoleAccessMode != nil {
		cfg.RoleAccessMode = store.AccessMode(*req.RoleAccessMode)
	}
	cfg.PluginName = d.Plugin

	if err := h.store.UpsertToolConfig(ctx, cfg); err != nil {
		h.storeError(w, "upsert tool config", err)
		return
	}
	if req.Roles != nil {
		if err := h.store.SetToolRoleAccess(ctx, name, req.Roles); err != nil {
			h.storeError(w, "set role access", err)
			return
		}
	}

	h.audit(r, "update_tool",
		"tool_name", name,
		"enabled", cfg.Enabled,
		"tool_category", cfg.Category,
		"role_access_mode", cfg.RoleAccessMode,
		"roles", len(req.Roles),
	)

	roles, err := h.store.GetToolRoleAccess(ctx, name)
	if err != nil {
		h.storeError(w, "get role access", err)
		return
	}
	writeJSON(w, http.StatusOK, ToolView{
		Name:           d.Name,
		Description:    d.Description,
		Plugin:         d.Plugin,
		Enabled:        cfg.Enabled,
		Configured:     true,
		Category:       cfg.Category,
		RoleAccessMode: cfg.RoleAccessMode,
		Roles:          roles,
	})
}

// handleToolAccess explains whether a user may use a tool.
func (h *Handler) handleToolAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	d, err := h.findTool(ctx, r.PathValue("name"))
	if err != nil {
		h.storeError(w, "find tool", err)
		return
	}
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		h.storeError(w, "get user", err)
		return
	}
	roles, err := h.store.ListRoles(ctx, userID)
	if err != nil {
		h.storeError(w, "list roles", err)
		return
	}

	status, err := policy.Check(ctx, h.store, tools.Caller{UserID: user.UserID, Email: user.Email, Roles: roles}, d)
	if err != nil {
		h.storeError(w, "check access", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleUpdatePlugin enables or disables every tool of a plugin.
func (h *Handler) handleUpdatePlugin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req updatePluginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	all, err := h.tools.Tools(r.Context())
	if err != nil {
		h.storeError(w, "load tools", err)
		return
	}
	if !lo.ContainsBy(all, func(d *tools.Descriptor) bool { return d.Plugin == name }) {
		writeError(w, http.StatusNotFound, "plugin not found")
		return
	}

	if err := h.store.SetPluginEnabled(r.Context(), name, *req.Enabled); err != nil {
		h.storeError(w, "set plugin enabled", err)
		return
	}
	h.audit(r, "update_plugin", "plugin", name, "enabled", *req.Enabled)

	writeJSON(w, http.StatusOK, map[string]any{"name": name, "enabled": *req.Enabled})
}

// handleStats summarizes tool configuration and call volume.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	views, err := h.toolViews(r.Context())
	if err != nil {
		h.storeError(w, "list tools", err)
		return
	}
	calls, err := h.store.ToolCallCounts(r.Context())
	if err != nil {
		h.storeError(w, "tool call counts", err)
		return
	}

	enabled := lo.Filter(views, func(v ToolView, _ int) bool { return v.Enabled })
	categories := lo.CountValuesBy(views, func(v ToolView) store.ToolCategory { return v.Category })

	writeJSON(w, http.StatusOK, map[string]any{
		"total_tools":        len(views),
		"enabled_tools":      len(enabled),
		"enabled_tool_names": lo.Map(enabled, func(v ToolView, _ int) string { return v.Name }),
		"categories":         categories,
		"calls":              calls,
	})
}
