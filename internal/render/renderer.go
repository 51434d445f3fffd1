// Package render turns a template id and a value map into a body string,
// used both for alert bodies and the ControlSurface's operator-facing
// pages. Templates are embedded at build time.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer renders a named template against a value map into a body string.
type Renderer interface {
	Render(templateID string, values map[string]any) (string, error)
}

// HTML is the production Renderer, backed by the embedded template set.
type HTML struct {
	templates *template.Template
}

// New parses the embedded template set once at construction.
func New() (*HTML, error) {
	t, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}
	return &HTML{templates: t}, nil
}

// Render looks up the template named "<templateID>.tmpl" and executes it
// against values.
func (h *HTML) Render(templateID string, values map[string]any) (string, error) {
	var buf strings.Builder
	name := templateID + ".tmpl"
	if err := h.templates.ExecuteTemplate(&buf, name, values); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", templateID, err)
	}
	return buf.String(), nil
}
