// Package builtins provides the tool plugins compiled into the server.
//
// # Plugins
//
// Core plugin (core):
//
//   - server_info: server name, version, protocol version and tool count
//   - whoami: the caller's user id, email and roles
//   - list_tools: accessible tool names grouped by plugin
//
// Notes plugin (notes):
//
//   - note_set: Store a note
//   - note_get: Retrieve a note
//   - note_list: List all note keys
//   - note_delete: Delete a note
//
// # Registration
//
// Plugins are handed to a tools.Catalog when the server is assembled:
//
//	catalog := tools.NewCatalog(
//		builtins.CorePlugin(info),
//		builtins.NotesPlugin(store),
//	)
//
// Whether a plugin or one of its tools is visible to a caller is decided by
// the policy predicates, not here.
//
// # Tool Implementation
//
// Each tool is a tools.Handler:
//
//	func(ctx context.Context, args map[string]any) (any, error)
//
// Arguments are decoded into a typed struct with mapstructure (json tags)
// and validated with validator tags. The same struct feeds schema.FromStruct
// to produce the published input schema.
//
// The caller and the request's registry snapshot come from the context
// (tools.CallerFromContext, tools.RegistryFromContext).
//
// # Errors
//
// Failures are failure/v2 errors carrying an ErrorCode. The protocol server
// renders them in-band with their call stack.
package builtins
