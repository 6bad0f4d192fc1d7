// ABOUTME: Admin JSON API over tool policy, plugins, users and credentials.
// ABOUTME: Routes are mounted behind the auth and System Manager middleware.

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/2389/assistant-core/internal/auth"
	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

// maxBodySize bounds admin request bodies.
const maxBodySize = 64 * 1024

// Store defines the store operations the admin API needs.
type Store interface {
	GetToolConfig(ctx context.Context, toolName string) (*store.ToolConfig, error)
	ListToolConfigs(ctx context.Context) (map[string]*store.ToolConfig, error)
	UpsertToolConfig(ctx context.Context, c *store.ToolConfig) error
	GetToolRoleAccess(ctx context.Context, toolName string) (map[string]bool, error)
	SetToolRoleAccess(ctx context.Context, toolName string, access map[string]bool) error
	PluginEnabled(ctx context.Context, name string) (bool, error)
	SetPluginEnabled(ctx context.Context, name string, enabled bool) error
	ToolCallCounts(ctx context.Context) (map[string]int, error)

	CreateUser(ctx context.Context, u *store.User) error
	GetUser(ctx context.Context, userID string) (*store.User, error)
	ListUsers(ctx context.Context) ([]*store.User, error)
	SetAssistantEnabled(ctx context.Context, userID string, enabled bool) error
	AddRole(ctx context.Context, userID, role string) error
	RemoveRole(ctx context.Context, userID, role string) error
	ListRoles(ctx context.Context, userID string) ([]string, error)

	CreateAPIKey(ctx context.Context, userID string) (key, secret string, err error)
	ListAPIKeys(ctx context.Context, userID string) ([]*store.APIKey, error)
	DeleteAPIKey(ctx context.Context, key string) error
}

// TokenGenerator generates JWT tokens.
type TokenGenerator interface {
	Generate(userID string, ttl time.Duration) (string, error)
}

// Config wires the admin API.
type Config struct {
	Store  Store
	Tools  tools.Source // every tool the server can serve, unfiltered
	Tokens TokenGenerator
	Logger *slog.Logger
}

// Handler serves /api/admin/*.
type Handler struct {
	store    Store
	tools    tools.Source
	tokens   TokenGenerator
	logger   *slog.Logger
	validate *validator.Validate
}

// New creates an admin API handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    cfg.Store,
		tools:    cfg.Tools,
		tokens:   cfg.Tokens,
		logger:   logger.With("component", "admin"),
		validate: validator.New(),
	}
}

// RegisterRoutes mounts every admin route on mux, each wrapped by guard
// (normally auth.HTTPAuthMiddleware followed by auth.RequireAdminHTTP).
func (h *Handler) RegisterRoutes(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, guard(fn))
	}

	route("GET /api/admin/tools", h.handleListTools)
	route("PUT /api/admin/tools/{name}", h.handleUpdateTool)
	route("GET /api/admin/tools/{name}/access", h.handleToolAccess)
	route("PUT /api/admin/plugins/{name}", h.handleUpdatePlugin)
	route("GET /api/admin/stats", h.handleStats)

	route("GET /api/admin/users", h.handleListUsers)
	route("POST /api/admin/users", h.handleCreateUser)
	route("PUT /api/admin/users/{id}", h.handleUpdateUser)
	route("POST /api/admin/users/{id}/roles", h.handleAddRole)
	route("DELETE /api/admin/users/{id}/roles/{role}", h.handleRemoveRole)

	route("GET /api/admin/apikeys", h.handleListAPIKeys)
	route("POST /api/admin/apikeys", h.handleCreateAPIKey)
	route("DELETE /api/admin/apikeys/{key}", h.handleDeleteAPIKey)
	route("POST /api/admin/tokens", h.handleCreateToken)
}

// audit logs a mutation together with the acting admin.
func (h *Handler) audit(r *http.Request, action string, attrs ...any) {
	actor := ""
	if a := auth.FromContext(r.Context()); a != nil {
		actor = a.UserID
	}
	h.logger.Info("admin action", append([]any{"action", action, "admin_user_id", actor}, attrs...)...)
}

// decodeBody reads a JSON body into v and validates it.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// storeError maps store sentinels onto HTTP statuses.
func (h *Handler) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	default:
		h.logger.Error("admin store operation failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
