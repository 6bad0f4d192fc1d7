// ABOUTME: Tool descriptor, handler and caller types shared by registry and server.
// ABOUTME: Plugins group descriptors; the Catalog is the static set of plugins.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/2389/assistant-core/internal/schema"
)

// Handler executes a tool. args are the decoded tools/call arguments (never
// nil). The result may be any value; the protocol layer serializes it.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Descriptor describes one dispatchable tool.
type Descriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Annotations map[string]any // nil when the tool has no hints
	Plugin      string
	Invoke      Handler
}

// Caller identifies who is listing or invoking tools.
type Caller struct {
	UserID string
	Email  string
	Roles  []string
}

// HasRole reports whether the caller holds role.
func (c Caller) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ErrInvalidDescriptor is returned when registering a malformed descriptor.
var ErrInvalidDescriptor = errors.New("invalid tool descriptor")

func (d *Descriptor) validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil", ErrInvalidDescriptor)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidDescriptor, d.Name)
	}
	return nil
}

// Schema returns the declared input schema, or an empty object schema.
func (d *Descriptor) Schema() json.RawMessage {
	if len(d.InputSchema) > 0 {
		return d.InputSchema
	}
	return schema.Empty().JSON()
}

// Plugin is a named group of tools that is enabled or disabled as a unit.
type Plugin struct {
	Name        string
	Description string
	Tools       []*Descriptor
}

// Catalog is the ordered, static set of plugins a server is built with.
// It implements Source.
type Catalog struct {
	plugins []*Plugin
}

// NewCatalog creates a catalog from the given plugins, stamping each tool
// with its owning plugin name.
func NewCatalog(plugins ...*Plugin) *Catalog {
	c := &Catalog{}
	for _, p := range plugins {
		c.Add(p)
	}
	return c
}

// Add appends a plugin to the catalog.
func (c *Catalog) Add(p *Plugin) {
	for _, t := range p.Tools {
		t.Plugin = p.Name
	}
	c.plugins = append(c.plugins, p)
}

// Plugins returns the catalog's plugins in registration order.
func (c *Catalog) Plugins() []*Plugin {
	return slices.Clone(c.plugins)
}

// Tools returns every descriptor in plugin order then tool order.
func (c *Catalog) Tools(_ context.Context) ([]*Descriptor, error) {
	return lo.FlatMap(c.plugins, func(p *Plugin, _ int) []*Descriptor {
		return p.Tools
	}), nil
}
