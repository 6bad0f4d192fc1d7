// ABOUTME: Tests for markdown tool documentation resources.
// ABOUTME: Covers AST extraction, listing order, read errors and summaries.

package resources

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestManager_ListExtractsTitleAndDescription(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"note_set.md": "# Store a note\n\nSaves a *value* under a\n`key` for the caller.\n\n## Arguments\n\n- key\n",
		"alpha.md":    "No heading here.\n\nSecond paragraph.\n",
		"ignored.txt": "not markdown",
	})

	m, err := NewManager(dir, slog.Default())
	require.NoError(t, err)

	list, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, Resource{
		URI:         "fac://tools/alpha",
		Name:        "alpha",
		Title:       "alpha",
		Description: "No heading here.",
		MimeType:    MimeMarkdown,
	}, list[0])

	assert.Equal(t, "fac://tools/note_set", list[1].URI)
	assert.Equal(t, "Store a note", list[1].Title)
	assert.Equal(t, "Saves a value under a key for the caller.", list[1].Description)
}

func TestManager_Read(t *testing.T) {
	body := "# Get\n\nFetch a note.\n"
	m, err := NewManager(writeDocs(t, map[string]string{"note_get.md": body}), slog.Default())
	require.NoError(t, err)
	ctx := context.Background()

	content, err := m.Read(ctx, "fac://tools/note_get")
	require.NoError(t, err)
	assert.Equal(t, &Content{URI: "fac://tools/note_get", MimeType: MimeMarkdown, Text: body}, content)

	_, err = m.Read(ctx, "fac://tools/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Read(ctx, "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidURI)

	_, err = m.Read(ctx, "fac://tools/")
	assert.ErrorIs(t, err, ErrInvalidURI)

	assert.True(t, m.Has("note_get"))
	assert.False(t, m.Has("note_set"))
}

func TestManager_MissingDirIsEmpty(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "nope"), slog.Default())
	require.NoError(t, err)

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_Reload(t *testing.T) {
	dir := writeDocs(t, map[string]string{"a.md": "# A\n"})
	m, err := NewManager(dir, slog.Default())
	require.NoError(t, err)
	assert.False(t, m.Has("b"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# B\n"), 0644))
	require.NoError(t, m.Reload())
	assert.True(t, m.Has("b"))
}

func TestSummarize(t *testing.T) {
	got := Summarize("note_set", "Store a note.\n\nLong explanation follows.")
	assert.Equal(t, "Store a note.\n\nSee resource fac://tools/note_set for full documentation.", got)
}
