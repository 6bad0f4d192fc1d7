// ABOUTME: Access predicates evaluated before a tool is listed or invoked.
// ABOUTME: Errors and panics deny access so a broken check never grants it.

package tools

import (
	"context"
	"fmt"
)

// Predicate decides whether caller may see and call tool.
type Predicate interface {
	Name() string
	Allow(ctx context.Context, caller Caller, tool *Descriptor) (bool, error)
}

// PredicateFunc adapts a function into a named Predicate.
type PredicateFunc struct {
	name string
	fn   func(ctx context.Context, caller Caller, tool *Descriptor) (bool, error)
}

// NewPredicate wraps fn as a Predicate called name.
func NewPredicate(name string, fn func(ctx context.Context, caller Caller, tool *Descriptor) (bool, error)) *PredicateFunc {
	return &PredicateFunc{name: name, fn: fn}
}

// Name returns the predicate's name for logging.
func (p *PredicateFunc) Name() string { return p.name }

// Allow calls the wrapped function.
func (p *PredicateFunc) Allow(ctx context.Context, caller Caller, tool *Descriptor) (bool, error) {
	return p.fn(ctx, caller, tool)
}

// evaluate runs a single predicate, converting a panic into an error.
func evaluate(ctx context.Context, p Predicate, caller Caller, tool *Descriptor) (allowed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			allowed = false
			err = fmt.Errorf("predicate %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Allow(ctx, caller, tool)
}
