// ABOUTME: Ordered tool registry with predicate filtering and dispatch.
// ABOUTME: Re-registering a name overwrites it in place; Clear empties the registry.

package tools

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// ErrToolNotFound indicates no tool with the requested name is registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolNotAccessible indicates the tool exists but the caller may not use it.
var ErrToolNotAccessible = errors.New("tool not accessible")

// Registry is an ordered mapping from tool name to Descriptor.
// Iteration order is registration order; overwriting keeps the original slot.
type Registry struct {
	mu         sync.RWMutex
	order      []string
	tools      map[string]*Descriptor
	predicates []Predicate
	logger     *slog.Logger
}

// NewRegistry creates an empty registry that filters with predicates.
func NewRegistry(logger *slog.Logger, predicates ...Predicate) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:      make(map[string]*Descriptor),
		predicates: predicates,
		logger:     logger,
	}
}

// Register inserts or overwrites a tool by name.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(d)
	return nil
}

func (r *Registry) registerLocked(d *Descriptor) {
	if _, exists := r.tools[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	} else {
		r.logger.Debug("tool re-registered", "tool_name", d.Name)
	}
	r.tools[d.Name] = d
}

// Replace atomically swaps the registry contents for descs. The new contents
// are assembled off to the side and swapped in under the lock, so readers see
// either the old or the new set, never a partial one.
func (r *Registry) Replace(descs []*Descriptor) error {
	next := &Registry{tools: make(map[string]*Descriptor, len(descs)), logger: r.logger}
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return err
		}
		next.registerLocked(d)
	}

	r.mu.Lock()
	r.order, r.tools = next.order, next.tools
	r.mu.Unlock()
	return nil
}

// Clear removes every tool.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.tools = make(map[string]*Descriptor)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All returns every registered tool in order, without filtering.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// List returns the tools caller may access, in registration order.
func (r *Registry) List(ctx context.Context, caller Caller) []*Descriptor {
	return lo.Filter(r.All(), func(d *Descriptor, _ int) bool {
		return r.Accessible(ctx, caller, d)
	})
}

// Resolve looks a tool up by name without applying predicates.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	if !ok {
		return nil, ErrToolNotFound
	}
	return d, nil
}

// Accessible runs the predicate chain for one tool. Any predicate that
// denies, errors, or panics makes the tool inaccessible.
func (r *Registry) Accessible(ctx context.Context, caller Caller, d *Descriptor) bool {
	for _, p := range r.predicates {
		allowed, err := evaluate(ctx, p, caller, d)
		if err != nil {
			r.logger.Warn("tool predicate failed, denying access",
				"predicate", p.Name(),
				"tool_name", d.Name,
				"user_id", caller.UserID,
				"error", err,
			)
			return false
		}
		if !allowed {
			return false
		}
	}
	return true
}

// Invoke resolves name, re-checks access and calls the tool's handler.
// Errors and panics raised by the handler propagate to the caller.
func (r *Registry) Invoke(ctx context.Context, caller Caller, name string, args map[string]any) (any, error) {
	d, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if !r.Accessible(ctx, caller, d) {
		return nil, ErrToolNotAccessible
	}
	if args == nil {
		args = map[string]any{}
	}

	r.logger.Debug("invoking tool", "tool_name", name, "plugin", d.Plugin, "user_id", caller.UserID)
	return d.Invoke(ctx, args)
}
