package handler

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

//go:embed templates
var templateFS embed.FS

// Renderer manages template parsing and rendering with isolated template sets
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewRenderer parses the embedded templates.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open templates: %w", err)
	}
	return NewRendererFS(sub, logger)
}

// NewRendererFS parses layout.html plus one isolated set per page under
// storefront/. Pages are keyed as "storefront/<name>".
func NewRendererFS(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	templates := make(map[string]*template.Template)

	// Parse storefront layout once as base template
	baseTmpl, err := template.New("base").Funcs(TemplateFuncs()).ParseFS(fsys, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	pages, err := fs.Glob(fsys, "storefront/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob storefront templates: %w", err)
	}

	for _, page := range pages {
		pageTmpl, err := baseTmpl.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone template for %s: %w", page, err)
		}

		pageTmpl, err = pageTmpl.ParseFS(fsys, page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", page, err)
		}

		name := strings.TrimSuffix(path.Base(page), path.Ext(page))
		templates["storefront/"+name] = pageTmpl
	}

	return &Renderer{
		templates: templates,
		logger:    logger,
	}, nil
}

// Execute returns the named template set.
func (r *Renderer) Execute(name string) (*template.Template, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Render executes the layout of a template set into w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, err := r.Execute(name)
	if err != nil {
		return err
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// RenderHTTP renders to an http.ResponseWriter with error handling. The page
// is rendered into a buffer first so a template error never produces a
// half-written 200.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	var buf strings.Builder
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("render error", "template", name, "error", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, buf.String())
}
