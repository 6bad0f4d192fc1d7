// Package mcp implements the Model Context Protocol server for tool access.
//
// # Overview
//
// MCP (Model Context Protocol) is a JSON-RPC 2.0 protocol for exposing callable
// tools and documentation resources to AI-assistant clients. This package
// serves a single stateless endpoint: every POST carries one request and gets
// one response (or a bare 202 for notifications).
//
//   - POST /mcp - JSON-RPC requests
//
// # Request Lifecycle
//
// Each request moves through the same steps:
//
//  1. Authenticate the Authorization header (401 with a WWW-Authenticate
//     challenge when required and missing or rejected, 403 when the user's
//     access is disabled).
//  2. Parse the body as a single JSON object (-32700 otherwise).
//  3. Acknowledge any notifications/* method with 202 and no body.
//  4. Reject a missing or null id with -32600.
//  5. Build a tool registry snapshot for the caller and route by Method.
//
// JSON-RPC errors are written with HTTP 400; results with HTTP 200.
//
// # Methods
//
//	initialize      {protocolVersion, capabilities{tools,prompts,resources}, serverInfo}
//	tools/list      {tools:[{name, description, inputSchema, annotations?}]}
//	tools/call      {content:[{type:"text", text}], isError}
//	ping            {}
//	resources/list  {resources:[...]}
//	resources/read  {contents:[{uri, mimeType, text}]}
//
// Anything else is answered with -32601 "Method not found: <method>".
//
// # Tool Failures
//
// A tools/call never produces a JSON-RPC error once its params are valid.
// Unknown or inaccessible tools yield:
//
//	{"content":[{"type":"text","text":"Tool 'nope' not found"}],"isError":true}
//
// Errors returned by a tool, and panics inside it, are rendered as
// "Error executing <tool>: <message>" followed by a traceback, again with
// isError set.
//
// # Serialization
//
// Marshal never fails. Values encoding/json rejects (NaN, channels, functions,
// maps with struct keys, broken MarshalJSON methods) are rewritten into their
// display strings. The same encoder writes tool results and the outer envelope.
//
// # Usage
//
//	builder := tools.NewBuilder(catalog, logger, predicates...)
//	srv, err := mcp.NewServer(mcp.Config{
//		Builder:     builder,
//		Auth:        authenticator,
//		RequireAuth: true,
//		PublicURL:   "https://assistant.example.com",
//		Logger:      logger,
//	})
//	srv.RegisterRoutes(mux)
//
// # Client Configuration
//
//	{
//	  "mcpServers": {
//	    "assistant": {
//	      "url": "http://localhost:8080/mcp",
//	      "headers": {"Authorization": "Bearer <token>"}
//	    }
//	  }
//	}
package mcp
