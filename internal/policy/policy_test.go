// ABOUTME: Tests for store-backed tool access predicates
// ABOUTME: Runs the full predicate chain through a tools.Registry

package policy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "policy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func noop(context.Context, map[string]any) (any, error) { return "ok", nil }

func newRegistry(t *testing.T, s Store) *tools.Registry {
	t.Helper()
	catalog := tools.NewCatalog(
		&tools.Plugin{Name: "core", Tools: []*tools.Descriptor{
			{Name: "whoami", Invoke: noop},
		}},
		&tools.Plugin{Name: "notes", Tools: []*tools.Descriptor{
			{Name: "note_get", Invoke: noop},
			{Name: "note_delete", Invoke: noop},
		}},
	)
	reg, err := tools.NewBuilder(catalog, nil, Chain(s)...).Build(context.Background(), tools.Caller{})
	require.NoError(t, err)
	return reg
}

func names(ds []*tools.Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestChain_DefaultsAllowEverything(t *testing.T) {
	s := newTestStore(t)
	reg := newRegistry(t, s)

	got := reg.List(context.Background(), tools.Caller{UserID: "u1"})
	assert.Equal(t, []string{"whoami", "note_get", "note_delete"}, names(got))
}

func TestChain_DisabledTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertToolConfig(ctx, &store.ToolConfig{ToolName: "note_get", PluginName: "notes", Enabled: false}))
	reg := newRegistry(t, s)

	admin := tools.Caller{UserID: "root", Roles: []string{store.RoleSystemManager}}
	assert.Equal(t, []string{"whoami", "note_delete"}, names(reg.List(ctx, admin)),
		"a disabled tool is hidden even from System Manager")

	_, err := reg.Invoke(ctx, admin, "note_get", nil)
	assert.ErrorIs(t, err, tools.ErrToolNotAccessible)
}

func TestChain_DisabledPlugin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetPluginEnabled(ctx, "notes", false))
	reg := newRegistry(t, s)

	assert.Equal(t, []string{"whoami"}, names(reg.List(ctx, tools.Caller{})))
}

func TestChain_RoleBased(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertToolConfig(ctx, &store.ToolConfig{
		ToolName:       "note_delete",
		PluginName:     "notes",
		Enabled:        true,
		RoleAccessMode: store.AccessRoleBased,
	}))
	require.NoError(t, s.SetToolRoleAccess(ctx, "note_delete", map[string]bool{
		"Editor": true,
		"Guest":  false,
	}))
	reg := newRegistry(t, s)

	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{name: "no roles", roles: nil, want: false},
		{name: "denied role", roles: []string{"Guest"}, want: false},
		{name: "allowed role", roles: []string{"Guest", "Editor"}, want: true},
		{name: "system manager", roles: []string{store.RoleSystemManager}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := tools.Caller{UserID: "u1", Roles: tt.roles}
			assert.Equal(t, tt.want, reg.Accessible(ctx, caller, mustResolve(t, reg, "note_delete")))
		})
	}
}

func mustResolve(t *testing.T, reg *tools.Registry, name string) *tools.Descriptor {
	t.Helper()
	d, err := reg.Resolve(name)
	require.NoError(t, err)
	return d
}

type failingStore struct{ Store }

func (failingStore) GetToolConfig(context.Context, string) (*store.ToolConfig, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) PluginEnabled(context.Context, string) (bool, error) { return true, nil }

func TestChain_StoreErrorsFailClosed(t *testing.T) {
	reg := newRegistry(t, failingStore{})

	assert.Empty(t, reg.List(context.Background(), tools.Caller{Roles: []string{store.RoleSystemManager}}))
}

func TestCheck(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tool := &tools.Descriptor{Name: "note_delete", Plugin: "notes", Invoke: noop}

	st, err := Check(ctx, s, tools.Caller{UserID: "u1"}, tool)
	require.NoError(t, err)
	assert.True(t, st.HasAccess)
	assert.False(t, st.Configured)
	assert.Equal(t, store.AccessAllowAll, st.RoleAccessMode)

	require.NoError(t, s.UpsertToolConfig(ctx, &store.ToolConfig{
		ToolName:       "note_delete",
		PluginName:     "notes",
		Enabled:        true,
		Category:       store.CategoryWrite,
		RoleAccessMode: store.AccessRoleBased,
	}))
	st, err = Check(ctx, s, tools.Caller{UserID: "u1"}, tool)
	require.NoError(t, err)
	assert.False(t, st.HasAccess)
	assert.True(t, st.Configured)
	assert.Equal(t, store.CategoryWrite, st.Category)
}
