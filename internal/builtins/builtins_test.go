// ABOUTME: Shared helpers for built-in tool tests.
// ABOUTME: Uses a real SQLite store and a registry snapshot in the context.

package builtins

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/morikuni/failure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func findHandler(p *tools.Plugin, name string) tools.Handler {
	for _, d := range p.Tools {
		if d.Name == name {
			return d.Invoke
		}
	}
	return nil
}

// requestContext mimics what the protocol server puts in a tools/call context.
func requestContext(t *testing.T, caller tools.Caller, plugins ...*tools.Plugin) context.Context {
	t.Helper()
	reg, err := tools.NewBuilder(tools.NewCatalog(plugins...), slog.Default()).Build(context.Background(), caller)
	require.NoError(t, err)
	return tools.WithRegistry(tools.WithCaller(context.Background(), caller), reg)
}

func TestDecode_ValidatesRequiredFields(t *testing.T) {
	var in noteSetArgs
	err := decode(context.Background(), map[string]any{"key": "k"}, &in)
	require.Error(t, err)
	assert.True(t, failure.Is(err, ErrInvalidArguments))
}

func TestDecode_WeaklyTypedValues(t *testing.T) {
	var in noteSetArgs
	err := decode(context.Background(), map[string]any{"key": "k", "value": 42}, &in)
	require.NoError(t, err)
	assert.Equal(t, "42", in.Value)
}

func TestSchemasAreInferredFromArgs(t *testing.T) {
	p := NotesPlugin(newTestStore(t))
	for _, d := range p.Tools {
		if d.Name == "note_set" {
			assert.JSONEq(t, `{
				"type":"object",
				"properties":{
					"key":{"type":"string","description":"Note key"},
					"value":{"type":"string","description":"Note contents"}
				},
				"required":["key","value"]
			}`, string(d.InputSchema))
		}
	}
}
