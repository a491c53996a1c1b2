// Package render produces SVG bytes for a named resource and a resolved
// rendering context.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"svgserve/internal/theme"
)

// Renderer turns a resource name and rendering context into SVG bytes.
// Rendering is deterministic for a fixed (name, context) pair.
type Renderer interface {
	Render(name string, ctx theme.RenderContext) ([]byte, error)
}

// templateData is what a template sees while executing.
type templateData struct {
	Style      map[string]interface{}
	Direction  string
	StyleID    int
	LanguageID int
}

// TemplateRenderer renders SVG templates from a directory on disk.
type TemplateRenderer struct {
	dir string
}

// NewTemplateRenderer returns a renderer reading templates from dir.
func NewTemplateRenderer(dir string) *TemplateRenderer {
	return &TemplateRenderer{dir: dir}
}

// Render executes the named template. The name is reduced to its base path so
// a request cannot escape the templates directory.
func (r *TemplateRenderer) Render(name string, ctx theme.RenderContext) ([]byte, error) {
	path := filepath.Join(r.dir, filepath.Base(name))

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("svg template %q: %w", name, err)
	}

	tpl, err := template.New(filepath.Base(name)).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("svg template %q: %w", name, err)
	}

	var buf bytes.Buffer
	err = tpl.Execute(&buf, templateData{
		Style:      ctx.Properties,
		Direction:  string(ctx.Direction),
		StyleID:    ctx.StyleID,
		LanguageID: ctx.LanguageID,
	})
	if err != nil {
		return nil, fmt.Errorf("svg template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}
