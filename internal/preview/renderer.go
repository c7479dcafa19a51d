package preview

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// View is everything the renderer needs to project one page.
type View struct {
	Title      string
	PageIndex  int
	PageCount  int
	Fragment   string
	Zoom       float64
	Fullscreen bool
	Empty      bool
}

// Renderer projects a page fragment into a host page where the fragment lives in
// a sandboxed iframe srcdoc, so its styles and scripts cannot reach the host UI.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"pageLabel": func(index, count int) string {
			if count == 0 {
				return "0 / 0"
			}
			return fmt.Sprintf("%d / %d", index+1, count)
		},
		"percent": func(zoom float64) int {
			return int(zoom*100 + 0.5)
		},
	}
	tmpl, err := template.New("preview.html").Funcs(funcMap).ParseFS(templateFS, "templates/preview.html")
	if err != nil {
		return nil, fmt.Errorf("parse preview template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the host page for view. The fragment is passed as a plain string
// so html/template attribute-escapes it into srcdoc instead of inlining it.
func (r *Renderer) Render(view View) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}
	return buf.String(), nil
}

// ViewOf builds the view for the current page of s.
func ViewOf(title string, s *Session) View {
	view := View{
		Title:      title,
		PageIndex:  s.Pagination.Index(),
		PageCount:  s.Pagination.Count(),
		Zoom:       s.Zoom.Value(),
		Fullscreen: s.Fullscreen(),
	}
	fragment, err := s.Pagination.Current()
	if err != nil {
		view.Empty = true
		return view
	}
	view.Fragment = fragment
	return view
}
