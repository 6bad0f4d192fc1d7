// Package gateway assembles the assistant-core protocol server.
//
// # Overview
//
// The gateway package owns the long-lived components of the server: the
// SQLite store, the builtin tool catalog, the optional documentation
// resources and the HTTP server. Everything else is wired together here.
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config     *config.Config
//	    store      *store.SQLiteStore
//	    catalog    *tools.Catalog
//	    resources  *resources.Manager
//	    jwt        *auth.JWTVerifier
//	    httpServer *http.Server
//	    logger     *slog.Logger
//	}
//
// # HTTP Routes
//
//   - POST /mcp - JSON-RPC protocol endpoint
//   - GET /api/whoami - identity of the authenticated caller
//   - /api/admin/... - tool policy, users and credentials (System Manager only)
//   - /.well-known/... and /api/discovery/... - discovery documents
//   - GET /health - liveness check
//   - GET /health/ready - readiness check (store ping)
//
// # Tool Registry
//
// Each protocol request builds its own registry snapshot: the static catalog
// of builtin plugins is filtered through the store-backed policy chain for
// the calling user. Changes made through the admin API therefore apply to
// the next request without a restart.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx)
//
// Run serves until ctx is canceled or the server fails, then shuts the HTTP
// server down with a five second deadline and closes the store.
package gateway
