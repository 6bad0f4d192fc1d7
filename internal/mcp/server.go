// ABOUTME: MCP-compatible HTTP server: parses JSON-RPC envelopes and routes them by method.
// ABOUTME: Each request gets its own tool registry snapshot built for the authenticated caller.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/assistant-core/internal/auth"
	"github.com/2389/assistant-core/internal/resources"
	"github.com/2389/assistant-core/internal/tools"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Defaults advertised by initialize when Config.Info is left empty.
const (
	DefaultServerName      = "assistant-core"
	DefaultServerVersion   = "2.0.0"
	DefaultProtocolVersion = "2025-03-26"
)

// Authenticator turns an Authorization header into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*auth.AuthContext, error)
}

// ResourceSource serves tool documentation for resources/list and resources/read.
type ResourceSource interface {
	List(ctx context.Context) ([]resources.Resource, error)
	Read(ctx context.Context, uri string) (*resources.Content, error)
	Has(name string) bool
}

// CallRecord describes one finished tools/call dispatch.
type CallRecord struct {
	UserID   string
	ToolName string
	IsError  bool
	Duration int64 // milliseconds
}

// Info is the identity reported by initialize.
type Info struct {
	Name            string
	Version         string
	ProtocolVersion string
}

// Config holds configuration for the MCP server.
type Config struct {
	Builder     *tools.Builder
	Auth        Authenticator
	RequireAuth bool // If true, reject requests without valid auth
	Resources   ResourceSource
	Info        Info
	PublicURL   string // base URL used in the WWW-Authenticate challenge
	Realm       string

	// MinimalDescriptions trims tool descriptions in tools/list to their first
	// paragraph when a documentation resource exists for the tool.
	MinimalDescriptions bool

	// OnToolCall is invoked after every tools/call dispatch. Optional.
	OnToolCall func(ctx context.Context, rec CallRecord)

	Logger *slog.Logger
}

// Server implements the MCP JSON-RPC endpoint.
type Server struct {
	builder     *tools.Builder
	auth        Authenticator
	requireAuth bool
	resources   ResourceSource
	info        Info
	publicURL   string
	realm       string
	minimal     bool
	onToolCall  func(ctx context.Context, rec CallRecord)
	logger      *slog.Logger
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Builder == nil {
		return nil, errors.New("tool builder is required")
	}
	if cfg.RequireAuth && cfg.Auth == nil {
		return nil, errors.New("authenticator required when auth is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info := cfg.Info
	if info.Name == "" {
		info.Name = DefaultServerName
	}
	if info.Version == "" {
		info.Version = DefaultServerVersion
	}
	if info.ProtocolVersion == "" {
		info.ProtocolVersion = DefaultProtocolVersion
	}

	realm := cfg.Realm
	if realm == "" {
		realm = info.Name
	}

	return &Server{
		builder:     cfg.Builder,
		auth:        cfg.Auth,
		requireAuth: cfg.RequireAuth,
		resources:   cfg.Resources,
		info:        info,
		publicURL:   strings.TrimRight(cfg.PublicURL, "/"),
		realm:       realm,
		minimal:     cfg.MinimalDescriptions,
		onToolCall:  cfg.OnToolCall,
		logger:      logger.With("component", "mcp"),
	}, nil
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/", s.handleMCP)
}

// ServeHTTP lets the server be mounted directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handleMCP(w, r)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handlePost(w, r)
}

// handlePost processes a single JSON-RPC message.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "Parse error", nil)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "Invalid Request: body too large", nil)
		return
	}

	req, rpcErr := parseRequest(body)
	if rpcErr != nil {
		s.sendJSONRPCError(w, nil, rpcErr.Code, rpcErr.Message, nil)
		return
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"has_id", req.HasID(),
		"user_id", caller.UserID,
	)

	// Notifications are acknowledged regardless of id or params.
	if req.IsNotification() {
		s.logger.Debug("accepted MCP notification", "method", req.Method)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if req.JSONRPC != "" && req.JSONRPC != JSONRPCVersion {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidRequest, "Invalid Request: unsupported jsonrpc version", nil)
		return
	}
	if !req.HasID() {
		s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "Invalid Request: missing id", nil)
		return
	}

	reg, err := s.builder.Build(r.Context(), caller)
	if err != nil {
		s.logger.Error("building tool registry", "error", err)
		s.sendJSONRPCError(w, req.ID, JSONRPCInternalError, "Internal error", nil)
		return
	}

	ctx := tools.WithRegistry(tools.WithCaller(r.Context(), caller), reg)
	resp := s.dispatch(ctx, reg, caller, req)
	s.send(w, resp)
}

// dispatch routes a validated request to its method handler.
func (s *Server) dispatch(ctx context.Context, reg *tools.Registry, caller tools.Caller, req *Request) *Response {
	switch ParseMethod(req.Method) {
	case MethodInitialize:
		return NewResult(req.ID, s.initializeResult())
	case MethodToolsList:
		return NewResult(req.ID, s.listTools(ctx, reg, caller))
	case MethodToolsCall:
		return s.callTool(ctx, reg, caller, req)
	case MethodPing:
		return NewResult(req.ID, struct{}{})
	case MethodResourcesList:
		return s.listResources(ctx, req)
	case MethodResourcesRead:
		return s.readResource(ctx, req)
	default:
		return NewError(req.ID, JSONRPCMethodNotFound, "Method not found: "+req.Method, nil)
	}
}

// parseRequest decodes a body that must be a single JSON object.
func parseRequest(body []byte) (*Request, *Error) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, &Error{Code: JSONRPCParseError, Message: "Parse error"}
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &Error{Code: JSONRPCParseError, Message: "Parse error"}
	}
	return &req, nil
}

// authenticate resolves the caller. It writes the 401/403 response itself and
// returns false when the request must not proceed.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (tools.Caller, bool) {
	header := r.Header.Get("Authorization")
	if s.auth == nil || (header == "" && !s.requireAuth) {
		return tools.Caller{}, true
	}
	if header == "" {
		s.challenge(w, nil)
		return tools.Caller{}, false
	}

	ac, err := s.auth.Authenticate(r.Context(), header)
	switch {
	case err == nil:
		return tools.Caller{UserID: ac.UserID, Email: ac.Email, Roles: ac.Roles}, true
	case errors.Is(err, auth.ErrAccessDisabled):
		s.logger.Info("MCP access disabled for user", "error", err)
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "forbidden",
			"message": "MCP access is disabled for this user",
		})
		return tools.Caller{}, false
	default:
		s.logger.Debug("MCP authentication failed", "error", err)
		s.challenge(w, err)
		return tools.Caller{}, false
	}
}

// challenge writes a 401 with an OAuth protected-resource pointer so clients
// can discover where to obtain a token.
func (s *Server) challenge(w http.ResponseWriter, cause error) {
	value := fmt.Sprintf(`Bearer realm=%q, resource_metadata=%q`,
		s.realm, s.publicURL+"/.well-known/oauth-protected-resource")
	if cause != nil {
		value += fmt.Sprintf(`, error="invalid_token", error_description=%q`, describeAuthError(cause))
	}
	w.Header().Set("WWW-Authenticate", value)
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":   "unauthorized",
		"message": "Authentication required",
	})
}

func describeAuthError(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "The access token expired"
	case errors.Is(err, auth.ErrMissingCredentials):
		return "No credentials supplied"
	default:
		return "The access token is invalid"
	}
}

// send writes a response envelope. Errors use HTTP 400; results use 200.
func (s *Server) send(w http.ResponseWriter, resp *Response) {
	status := http.StatusOK
	if resp.Error != nil {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(Marshal(resp)); err != nil {
		s.logger.Warn("failed to write JSON-RPC response", "error", err)
	}
}

// sendJSONRPCError sends a JSON-RPC error response.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	s.send(w, NewError(id, code, message, data))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(Marshal(v))
}
