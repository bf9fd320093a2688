// Package render turns pieces into printable HTML and PDF documents.
package render

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"lexdraft-backend/models"
	"lexdraft-backend/prosemirror"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

//go:embed templates/document.html
var templateFS embed.FS

var documentTemplate = template.Must(
	template.New("document.html").Funcs(template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}).ParseFS(templateFS, "templates/document.html"),
)

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title         string
	ShowTitle     bool
	TemplateTitle string
	Category      string
	ContentHTML   string
	UpdatedAt     time.Time
}

// DocumentHTML renders a piece as a standalone HTML document. Content that
// is not a valid document renders as an empty body.
func DocumentHTML(p *models.Piece) (string, error) {
	data := TemplateData{
		Title:     p.DisplayTitle(),
		UpdatedAt: p.UpdatedAt,
	}
	if p.Template != nil {
		data.TemplateTitle = p.Template.Title
		data.Category = p.Template.Category
	}

	if !p.ContentJSON.IsNull() {
		if doc, err := prosemirror.Parse(p.ContentJSON); err == nil {
			data.ContentHTML = doc.ToHTML()
		}
	}
	// drafts usually open with their own heading
	data.ShowTitle = data.ContentHTML == "" || !strings.HasPrefix(data.ContentHTML, "<h")

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeFilename creates a safe filename from a title
func SanitizeFilename(title string) string {
	result := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result = append(result, r)
		case r == ' ':
			result = append(result, '-')
		case r == '-', r == '_':
			result = append(result, r)
		default:
			if a, ok := unaccent[r]; ok {
				result = append(result, a)
			}
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}
	if len(result) == 0 {
		return "documento"
	}
	return string(result)
}

var unaccent = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'Á': 'A', 'À': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A',
	'é': 'e', 'ê': 'e', 'É': 'E', 'Ê': 'E',
	'í': 'i', 'Í': 'I',
	'ó': 'o', 'ô': 'o', 'õ': 'o', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O',
	'ú': 'u', 'ü': 'u', 'Ú': 'U', 'Ü': 'U',
	'ç': 'c', 'Ç': 'C',
}
