// Package render turns annotation items into HTML.
package render

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Box writes a single item.
func (r *Renderer) Box(w io.Writer, v BoxView) error {
	return r.tmpl.ExecuteTemplate(w, "box", v)
}

// Page writes a full HTML document for a batch.
func (r *Renderer) Page(w io.Writer, v PageView) error {
	return r.tmpl.ExecuteTemplate(w, "page", v)
}
