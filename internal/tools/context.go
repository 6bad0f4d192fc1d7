// ABOUTME: Context helpers carrying the caller and registry snapshot into tool handlers.
// ABOUTME: Builtin tools read identity from here instead of from transport state.

package tools

import "context"

type callerKey struct{}

type registryKey struct{}

// WithCaller returns a context carrying caller.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller stored in ctx and whether one was set.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// WithRegistry returns a context carrying the request's registry snapshot.
func WithRegistry(ctx context.Context, reg *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, reg)
}

// RegistryFromContext returns the registry snapshot stored in ctx, or nil.
func RegistryFromContext(ctx context.Context) *Registry {
	reg, _ := ctx.Value(registryKey{}).(*Registry)
	return reg
}
