// Package tools provides the tool registry and dispatch layer behind the MCP
// server.
//
// # Overview
//
// A tool is a named operation with a JSON Schema input description and an
// in-process handler. Tools are grouped into plugins; the Catalog holds every
// plugin the server was built with.
//
// # Architecture
//
//   - Descriptor: name, description, input schema, annotations, handler
//   - Plugin / Catalog: static, ordered groups of descriptors
//   - Registry: ordered name -> Descriptor map with a predicate chain
//   - Builder: rebuilds an isolated Registry for one request from a Source
//
// # Access Control
//
// Visibility is decided by a chain of Predicates (tool enabled, role access,
// plugin enabled). A tool is visible only when every predicate allows it. A
// predicate that returns an error or panics denies access.
//
// Invoke re-runs the chain before dispatching, since the caller's rights may
// have changed between tools/list and tools/call.
//
// # Request Lifecycle
//
// The registry is derived state. Each MCP request builds its own snapshot:
//
//	reg, err := builder.Build(ctx, caller)
//	for _, d := range reg.List(ctx, caller) { ... }
//	result, err := reg.Invoke(ctx, caller, "note_get", args)
//
// Concurrent requests never share a mutable registry.
package tools
