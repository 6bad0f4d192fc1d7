// ABOUTME: Tests for the admin JSON API
// ABOUTME: Runs the real auth middleware, SQLite store and builtin plugins

package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/assistant-core/internal/auth"
	"github.com/2389/assistant-core/internal/builtins"
	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

// testSecret is a 32-byte secret that meets MinSecretLength requirement.
var testSecret = []byte("admin-token-test-secret-32bytes!")

type testEnv struct {
	store      *store.SQLiteStore
	mux        *http.ServeMux
	adminToken string
	userToken  string
	userID     string
	jwt        *auth.JWTVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	jwt, err := auth.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	admin := &store.User{Email: "admin@example.com", AssistantEnabled: true}
	require.NoError(t, s.CreateUser(ctx, admin))
	require.NoError(t, s.AddRole(ctx, admin.UserID, store.RoleSystemManager))
	user := &store.User{Email: "user@example.com", AssistantEnabled: true}
	require.NoError(t, s.CreateUser(ctx, user))

	adminToken, err := jwt.Generate(admin.UserID, time.Hour)
	require.NoError(t, err)
	userToken, err := jwt.Generate(user.UserID, time.Hour)
	require.NoError(t, err)

	catalog := tools.NewCatalog(
		builtins.CorePlugin(builtins.ServerInfo{Name: "test"}),
		builtins.NotesPlugin(s),
	)
	authn := auth.NewAuthenticator(jwt, auth.NewAPIKeyVerifier(s), s)
	guard := func(next http.Handler) http.Handler {
		return auth.HTTPAuthMiddleware(authn)(auth.RequireAdminHTTP()(next))
	}

	mux := http.NewServeMux()
	New(Config{Store: s, Tools: catalog, Tokens: jwt}).RegisterRoutes(mux, guard)

	return &testEnv{store: s, mux: mux, adminToken: adminToken, userToken: userToken, userID: user.UserID, jwt: jwt}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAdmin_RequiresSystemManager(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/admin/tools", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/admin/tools", e.userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/admin/tools", e.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_ListToolsGroupedByPlugin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/admin/tools", e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[struct {
		Plugins []PluginView `json:"plugins"`
		Total   int          `json:"total"`
	}](t, rec)

	assert.Equal(t, 7, body.Total)
	require.Len(t, body.Plugins, 2)
	assert.Equal(t, "core", body.Plugins[0].Name)
	assert.Equal(t, "notes", body.Plugins[1].Name)
	assert.Equal(t, "note_set", body.Plugins[1].Tools[0].Name)
	assert.Equal(t, "note_delete", body.Plugins[1].Tools[3].Name)
	for _, tv := range body.Plugins[1].Tools {
		assert.True(t, tv.Enabled)
		assert.False(t, tv.Configured)
		assert.Equal(t, store.AccessAllowAll, tv.RoleAccessMode)
	}
}

func TestAdmin_UpdateTool(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	rec := e.do(t, http.MethodPut, "/api/admin/tools/note_delete", e.adminToken, map[string]any{
		"enabled":          true,
		"tool_category":    "write",
		"role_access_mode": "Role Based",
		"roles":            map[string]bool{"Editor": true, "Guest": false},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decodeJSON[ToolView](t, rec)
	assert.Equal(t, "notes", view.Plugin)
	assert.Equal(t, store.CategoryWrite, view.Category)
	assert.Equal(t, map[string]bool{"Editor": true, "Guest": false}, view.Roles)

	cfg, err := e.store.GetToolConfig(ctx, "note_delete")
	require.NoError(t, err)
	assert.Equal(t, store.AccessRoleBased, cfg.RoleAccessMode)
	assert.Equal(t, "notes", cfg.PluginName)

	// Partial update keeps the other fields.
	rec = e.do(t, http.MethodPut, "/api/admin/tools/note_delete", e.adminToken, map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	cfg, err = e.store.GetToolConfig(ctx, "note_delete")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, store.AccessRoleBased, cfg.RoleAccessMode)
}

func TestAdmin_UpdateToolValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown tool", "/api/admin/tools/nope", map[string]any{"enabled": true}, http.StatusNotFound},
		{"bad category", "/api/admin/tools/note_get", map[string]any{"tool_category": "admin"}, http.StatusBadRequest},
		{"bad mode", "/api/admin/tools/note_get", map[string]any{"role_access_mode": "Nobody"}, http.StatusBadRequest},
		{"bad json", "/api/admin/tools/note_get", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPut, tt.path, e.adminToken, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAdmin_UpdatePlugin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPut, "/api/admin/plugins/notes", e.adminToken, map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)

	enabled, err := e.store.PluginEnabled(context.Background(), "notes")
	require.NoError(t, err)
	assert.False(t, enabled)

	rec = e.do(t, http.MethodPut, "/api/admin/plugins/unknown", e.adminToken, map[string]any{"enabled": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/admin/plugins/notes", e.adminToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Stats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, e.store.UpsertToolConfig(ctx, &store.ToolConfig{
		ToolName: "note_delete", PluginName: "notes", Enabled: false, Category: store.CategoryWrite,
	}))
	require.NoError(t, e.store.RecordToolCall(ctx, &store.ToolCall{ToolName: "whoami", UserID: e.userID}))

	rec := e.do(t, http.MethodGet, "/api/admin/stats", e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[struct {
		Total      int            `json:"total_tools"`
		Enabled    int            `json:"enabled_tools"`
		Names      []string       `json:"enabled_tool_names"`
		Categories map[string]int `json:"categories"`
		Calls      map[string]int `json:"calls"`
	}](t, rec)

	assert.Equal(t, 7, body.Total)
	assert.Equal(t, 6, body.Enabled)
	assert.NotContains(t, body.Names, "note_delete")
	assert.Equal(t, map[string]int{"read_only": 6, "write": 1}, body.Categories)
	assert.Equal(t, 1, body.Calls["whoami"])
}

func TestAdmin_ToolAccess(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, e.store.UpsertToolConfig(ctx, &store.ToolConfig{
		ToolName: "note_get", PluginName: "notes", Enabled: true, RoleAccessMode: store.AccessRoleBased,
	}))

	rec := e.do(t, http.MethodGet, "/api/admin/tools/note_get/access?user_id="+e.userID, e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, false, body["has_access"])
	assert.Equal(t, true, body["configured"])

	rec = e.do(t, http.MethodGet, "/api/admin/tools/note_get/access", e.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Users(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/admin/users", e.adminToken, map[string]any{
		"email":        "New@Example.com",
		"display_name": "New User",
		"roles":        []string{"Editor"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[UserView](t, rec)
	assert.Equal(t, "new@example.com", created.Email)
	assert.True(t, created.AssistantEnabled)
	assert.Equal(t, []string{"Editor"}, created.Roles)

	rec = e.do(t, http.MethodPost, "/api/admin/users", e.adminToken, map[string]any{"email": "new@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/users", e.adminToken, map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/users/"+created.UserID+"/roles", e.adminToken, map[string]any{"role": "Auditor"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Auditor", "Editor"}, decodeJSON[map[string]any](t, rec)["roles"])

	rec = e.do(t, http.MethodDelete, "/api/admin/users/"+created.UserID+"/roles/Editor", e.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/users/missing/roles", e.adminToken, map[string]any{"role": "Auditor"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/admin/users/"+created.UserID, e.adminToken, map[string]any{"assistant_enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeJSON[UserView](t, rec).AssistantEnabled)

	rec = e.do(t, http.MethodGet, "/api/admin/users", e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[map[string][]UserView](t, rec)["users"], 3)
}

func TestAdmin_APIKeys(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	rec := e.do(t, http.MethodPost, "/api/admin/apikeys", e.adminToken, map[string]any{"user_id": e.userID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "token "+created["api_key"]+":"+created["api_secret"], created["credential"])

	userID, err := e.store.VerifyAPIKey(ctx, created["api_key"], created["api_secret"])
	require.NoError(t, err)
	assert.Equal(t, e.userID, userID)

	rec = e.do(t, http.MethodGet, "/api/admin/apikeys?user_id="+e.userID, e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[map[string][]map[string]any](t, rec)["api_keys"], 1)

	rec = e.do(t, http.MethodDelete, "/api/admin/apikeys/"+created["api_key"], e.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/apikeys", e.adminToken, map[string]any{"user_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_CreateToken(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/admin/tokens", e.adminToken, map[string]any{"user_id": e.userID, "ttl_seconds": 3600})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := decodeJSON[map[string]string](t, rec)["token"]

	userID, err := e.jwt.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, e.userID, userID)

	rec = e.do(t, http.MethodPost, "/api/admin/tokens", e.adminToken, map[string]any{"user_id": e.userID, "ttl_seconds": 400 * 24 * 3600})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, e.store.SetAssistantEnabled(context.Background(), e.userID, false))
	rec = e.do(t, http.MethodPost, "/api/admin/tokens", e.adminToken, map[string]any{"user_id": e.userID})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}
