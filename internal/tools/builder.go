// ABOUTME: Builds an isolated per-request registry snapshot from a tool source.
// ABOUTME: Replaces the process-wide clear-and-repopulate pattern with rebuild-then-swap.

package tools

import (
	"context"
	"fmt"
	"log/slog"
)

// Source supplies the full, unfiltered set of tools.
type Source interface {
	Tools(ctx context.Context) ([]*Descriptor, error)
}

// Builder produces registry snapshots scoped to one request.
type Builder struct {
	source     Source
	predicates []Predicate
	logger     *slog.Logger
}

// NewBuilder creates a builder over source. Every snapshot filters with
// predicates.
func NewBuilder(source Source, logger *slog.Logger, predicates ...Predicate) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		source:     source,
		predicates: predicates,
		logger:     logger.With("component", "tools"),
	}
}

// Build returns a fresh registry holding every tool from the source. The
// caller is only used for logging; filtering happens on List and Invoke so
// that call-time checks see current policy.
func (b *Builder) Build(ctx context.Context, caller Caller) (*Registry, error) {
	descs, err := b.source.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tools: %w", err)
	}

	reg := NewRegistry(b.logger, b.predicates...)
	if err := reg.Replace(descs); err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}

	b.logger.Debug("registry snapshot built", "tools", reg.Len(), "user_id", caller.UserID)
	return reg, nil
}
