// ABOUTME: Markdown tool documentation exposed as MCP resources.
// ABOUTME: Titles and descriptions are pulled from the goldmark AST of each doc.

package resources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// URIPrefix is the scheme and authority of every tool documentation URI.
const URIPrefix = "fac://tools/"

// MimeMarkdown is the MIME type of every resource served here.
const MimeMarkdown = "text/markdown"

var (
	// ErrNotFound is returned for URIs that do not name a known document.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidURI is returned for URIs outside the tool documentation scheme.
	ErrInvalidURI = errors.New("invalid resource uri")
)

// Resource is one entry of resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType"`
}

// Content is one entry of resources/read.
type Content struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type doc struct {
	name        string
	title       string
	description string
	body        string
}

// Manager serves the *.md files of a directory as tool documentation.
type Manager struct {
	dir    string
	md     goldmark.Markdown
	logger *slog.Logger

	mu   sync.RWMutex
	docs map[string]*doc
}

// NewManager loads every markdown file in dir. A missing directory yields an
// empty manager rather than an error.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		dir:    dir,
		md:     goldmark.New(),
		logger: logger.With("component", "resources"),
		docs:   make(map[string]*doc),
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the documentation directory.
func (m *Manager) Reload() error {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("docs directory does not exist", "dir", m.dir)
		entries = nil
	} else if err != nil {
		return fmt.Errorf("reading docs dir: %w", err)
	}

	docs := make(map[string]*doc, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		src, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		d := m.parse(name, src)
		docs[name] = d
	}

	m.mu.Lock()
	m.docs = docs
	m.mu.Unlock()

	m.logger.Info("loaded tool documentation", "dir", m.dir, "count", len(docs))
	return nil
}

func (m *Manager) parse(name string, src []byte) *doc {
	d := &doc{name: name, body: string(src)}
	root := m.md.Parser().Parse(text.NewReader(src))

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && d.title == "" {
				d.title = plainText(node, src)
			}
		case *ast.Paragraph:
			if d.description == "" {
				d.description = plainText(node, src)
			}
		}
		if d.title != "" && d.description != "" {
			break
		}
	}
	if d.title == "" {
		d.title = name
	}
	return d
}

// plainText concatenates the text segments below n.
func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// List returns every document as a resource, sorted by name.
func (m *Manager) List(_ context.Context) ([]Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Resource, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, Resource{
			URI:         URIFor(d.name),
			Name:        d.name,
			Title:       d.title,
			Description: d.description,
			MimeType:    MimeMarkdown,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read returns the full markdown body of the document named by uri.
func (m *Manager) Read(_ context.Context, uri string) (*Content, error) {
	name, ok := strings.CutPrefix(uri, URIPrefix)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}

	m.mu.RLock()
	d, ok := m.docs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}

	return &Content{URI: uri, MimeType: MimeMarkdown, Text: d.body}, nil
}

// Has reports whether documentation exists for the named tool.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[name]
	return ok
}

// URIFor returns the resource URI of a tool's documentation.
func URIFor(name string) string {
	return URIPrefix + name
}

// Summarize trims a tool description to its first paragraph and points the
// reader at the full documentation resource.
func Summarize(name, description string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(description), "\n\n")
	return fmt.Sprintf("%s\n\nSee resource %s for full documentation.", strings.TrimSpace(first), URIFor(name))
}
