// ABOUTME: Core plugin: server identity, caller identity and accessible tool listing.
// ABOUTME: Reads the caller and the request's registry snapshot from the context.

package builtins

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/2389/assistant-core/internal/tools"
)

// CorePluginName is the plugin name of the core tools.
const CorePluginName = "core"

// ServerInfo identifies the running server to the server_info tool.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
}

type noArgs struct{}

type listToolsArgs struct {
	Plugin string `json:"plugin,omitempty" desc:"Only list tools from this plugin"`
}

// CorePlugin creates the core plugin.
func CorePlugin(info ServerInfo) *tools.Plugin {
	c := &coreHandlers{info: info}
	return &tools.Plugin{
		Name:        CorePluginName,
		Description: "Server and session introspection",
		Tools: []*tools.Descriptor{
			{
				Name:        "server_info",
				Description: "Describe this server: name, version, protocol version and tool count.",
				InputSchema: inputSchema(noArgs{}),
				Annotations: readOnly,
				Invoke:      c.ServerInfo,
			},
			{
				Name:        "whoami",
				Description: "Return the authenticated caller's user id, email and roles.",
				InputSchema: inputSchema(noArgs{}),
				Annotations: readOnly,
				Invoke:      c.WhoAmI,
			},
			{
				Name:        "list_tools",
				Description: "List the tools available to the caller, grouped by plugin.",
				InputSchema: inputSchema(listToolsArgs{}),
				Annotations: readOnly,
				Invoke:      c.ListTools,
			},
		},
	}
}

type coreHandlers struct {
	info ServerInfo
}

// ServerInfo reports the server identity and the size of the caller's registry.
func (c *coreHandlers) ServerInfo(ctx context.Context, _ map[string]any) (any, error) {
	count := 0
	if reg := tools.RegistryFromContext(ctx); reg != nil {
		count = reg.Len()
	}
	return map[string]any{
		"name":             c.info.Name,
		"version":          c.info.Version,
		"protocol_version": c.info.ProtocolVersion,
		"tool_count":       count,
	}, nil
}

// WhoAmI reports the caller identity.
func (c *coreHandlers) WhoAmI(ctx context.Context, _ map[string]any) (any, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	roles := caller.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]any{
		"user_id": caller.UserID,
		"email":   caller.Email,
		"roles":   roles,
	}, nil
}

// ListTools groups the caller's accessible tool names by plugin.
func (c *coreHandlers) ListTools(ctx context.Context, args map[string]any) (any, error) {
	var in listToolsArgs
	if err := decode(ctx, args, &in); err != nil {
		return nil, err
	}

	reg := tools.RegistryFromContext(ctx)
	if reg == nil {
		return map[string]any{"plugins": map[string][]string{}, "count": 0}, nil
	}
	caller, _ := tools.CallerFromContext(ctx)

	visible := reg.List(ctx, caller)
	if in.Plugin != "" {
		visible = lo.Filter(visible, func(d *tools.Descriptor, _ int) bool {
			return d.Plugin == in.Plugin
		})
	}

	grouped := lo.MapValues(
		lo.GroupBy(visible, func(d *tools.Descriptor) string { return d.Plugin }),
		func(ds []*tools.Descriptor, _ string) []string {
			return lo.Map(ds, func(d *tools.Descriptor, _ int) string { return d.Name })
		},
	)
	plugins := lo.Keys(grouped)
	sort.Strings(plugins)

	return map[string]any{
		"plugins":      grouped,
		"plugin_order": plugins,
		"count":        len(visible),
	}, nil
}
