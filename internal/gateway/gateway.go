// ABOUTME: Gateway orchestrator that assembles the protocol server and its HTTP routes
// ABOUTME: Manages the store, tool catalog, admin API and server lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/assistant-core/internal/admin"
	"github.com/2389/assistant-core/internal/auth"
	"github.com/2389/assistant-core/internal/builtins"
	"github.com/2389/assistant-core/internal/config"
	"github.com/2389/assistant-core/internal/discovery"
	"github.com/2389/assistant-core/internal/mcp"
	"github.com/2389/assistant-core/internal/policy"
	"github.com/2389/assistant-core/internal/resources"
	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

// shutdownTimeout bounds graceful shutdown once Run's context is canceled.
const shutdownTimeout = 5 * time.Second

// Gateway owns the store and the HTTP server of the protocol service.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	catalog    *tools.Catalog
	resources  *resources.Manager
	jwt        *auth.JWTVerifier
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore opens the SQLite store, honouring ASSISTANT_DB_PATH.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("ASSISTANT_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config: cfg,
		store:  s,
		logger: logger.With("component", "gateway"),
	}

	if cfg.Auth.JWTSecret != "" {
		gw.jwt, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
	}

	if cfg.MCP.EnableResources {
		gw.resources, err = resources.NewManager(cfg.MCP.DocsDir, logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("loading tool documentation: %w", err)
		}
	}

	gw.catalog = tools.NewCatalog(
		builtins.CorePlugin(builtins.ServerInfo{
			Name:            cfg.MCP.ServerName,
			Version:         cfg.MCP.ServerVersion,
			ProtocolVersion: cfg.MCP.ProtocolVersion,
		}),
		builtins.NotesPlugin(s),
	)

	mux, err := gw.routes()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw, nil
}

// authenticator builds the request authenticator. The bearer scheme is only
// offered when a JWT secret is configured.
func (g *Gateway) authenticator() *auth.Authenticator {
	var verifier auth.TokenVerifier
	if g.jwt != nil {
		verifier = g.jwt
	}
	return auth.NewAuthenticator(verifier, auth.NewAPIKeyVerifier(g.store), g.store)
}

// routes wires every HTTP endpoint onto a new mux.
func (g *Gateway) routes() (*http.ServeMux, error) {
	cfg := g.config
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	authn := g.authenticator()
	mcpCfg := mcp.Config{
		Builder:     tools.NewBuilder(g.catalog, g.logger, policy.Chain(g.store)...),
		Auth:        authn,
		RequireAuth: cfg.Auth.Required(),
		Info: mcp.Info{
			Name:            cfg.MCP.ServerName,
			Version:         cfg.MCP.ServerVersion,
			ProtocolVersion: cfg.MCP.ProtocolVersion,
		},
		PublicURL:           cfg.Server.PublicURL,
		Realm:               cfg.Auth.Realm,
		MinimalDescriptions: cfg.MCP.MinimalDescriptions,
		OnToolCall:          g.recordToolCall,
		Logger:              g.logger,
	}
	if g.resources != nil {
		mcpCfg.Resources = g.resources
	}
	mcpServer, err := mcp.NewServer(mcpCfg)
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	mcpServer.RegisterRoutes(mux)

	authMiddleware := auth.HTTPAuthMiddleware(authn)
	mux.Handle("GET /api/whoami", authMiddleware(http.HandlerFunc(auth.WhoAmIHandler)))

	adminCfg := admin.Config{
		Store:  g.store,
		Tools:  g.catalog,
		Logger: g.logger,
	}
	if g.jwt != nil {
		adminCfg.Tokens = g.jwt
	}
	requireAdmin := auth.RequireAdminHTTP()
	admin.New(adminCfg).RegisterRoutes(mux, func(next http.Handler) http.Handler {
		return authMiddleware(requireAdmin(next))
	})

	discovery.New(discovery.Config{
		PublicURL:        g.publicURL(),
		ProtocolVersion:  cfg.MCP.ProtocolVersion,
		ServerName:       cfg.MCP.ServerName,
		ServerVersion:    cfg.MCP.ServerVersion,
		ResourcesEnabled: g.resources != nil,
	}).RegisterRoutes(mux)

	return mux, nil
}

// publicURL is the configured external URL, or one derived from the listen address.
func (g *Gateway) publicURL() string {
	if g.config.Server.PublicURL != "" {
		return g.config.Server.PublicURL
	}
	return "http://" + g.config.Server.HTTPAddr
}

// recordToolCall persists a finished tool call to the audit log.
func (g *Gateway) recordToolCall(ctx context.Context, rec mcp.CallRecord) {
	err := g.store.RecordToolCall(ctx, &store.ToolCall{
		UserID:     rec.UserID,
		ToolName:   rec.ToolName,
		IsError:    rec.IsError,
		DurationMS: rec.Duration,
	})
	if err != nil {
		g.logger.Warn("failed to record tool call", "tool", rec.ToolName, "error", err)
	}
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Store returns the gateway's store.
func (g *Gateway) Store() *store.SQLiteStore {
	return g.store
}

// Run serves HTTP until ctx is canceled or the server fails, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		_ = g.store.Close()
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		// The parent context is already done; shutdown gets a fresh deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return g.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())
	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady returns 200 OK if the store answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
