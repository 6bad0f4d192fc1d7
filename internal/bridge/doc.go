// ABOUTME: Package bridge exposes a request/response protocol server over SSE.
// ABOUTME: See the package documentation for the delivery model.

// Package bridge fronts the protocol server with a server-sent events
// transport for clients that cannot hold a plain request/response session.
//
// A client opens GET /mcp/sse and receives an "endpoint" event naming its
// session URL. Requests may be posted to that URL, to POST /mcp/sse, or to
// POST /mcp/request for a synchronous answer. Responses for stream-bound
// requests arrive as "message" events; idle streams receive "ping" events.
//
// Callers are identified by validating their Authorization header against
// the remote server:
//
//   - Bearer tokens are resolved through the identity endpoint.
//   - "token key:secret" credentials are checked with a ping request.
//   - A bare key is combined with the configured API secret.
//
// Each caller maps to one user context. Requests posted before the user has
// a stream are buffered for a short grace period and delivered, in order, when
// a stream opens. Only the most recently opened stream of a user receives
// deliveries.
package bridge
