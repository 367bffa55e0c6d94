// Package preview renders skill Markdown to HTML for the preview pane and
// the file browser.
package preview

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to HTML.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer returns a GFM renderer that understands YAML frontmatter.
// Raw HTML in documents is escaped.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, meta.Meta),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Render converts a document body (no header) to HTML.
func (r *Renderer) Render(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("preview: render: %w", err)
	}
	return buf.String(), nil
}

// RenderFile converts a complete Markdown file. A leading YAML frontmatter
// block is stripped from the output and returned decoded.
func (r *Renderer) RenderFile(raw []byte) (string, map[string]any, error) {
	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := r.md.Convert(raw, &buf, parser.WithContext(pctx)); err != nil {
		return "", nil, fmt.Errorf("preview: render file: %w", err)
	}
	fm, err := meta.TryGet(pctx)
	if err != nil {
		// Malformed YAML still renders; the header is just not decoded.
		fm = nil
	}
	return buf.String(), fm, nil
}

// IsMarkdown reports whether name has a Markdown extension.
func IsMarkdown(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".mdx", ".markdown":
		return true
	}
	return false
}
