package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"ledgerdesk/api/internal/document"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

type pageData struct {
	Title string
	Width int
	Body  template.HTML
}

// PageDocument returns the HTML document loaded into render targets and print
// surfaces. Fragments are wrapped in an A4 page shell at content width;
// markup that is already a full document is used unchanged.
func PageDocument(src document.Source) (string, error) {
	markup := src.CanonicalMarkup()
	if isFullDocument(markup) {
		return markup, nil
	}

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{
		Title: src.Title(),
		Width: ContentWidthCSS,
		// Canonical markup is trusted output of the document builder.
		Body: template.HTML(markup),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isFullDocument(markup string) bool {
	head := strings.ToLower(strings.TrimSpace(markup))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype") || strings.Contains(head, "<html")
}
