package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names available to Render.
const (
	TemplateExamReminder  = "exam_reminder"
	TemplateNewAssignment = "new_assignment"
	TemplateTest          = "test"
)

var (
	textTemplates = texttemplate.Must(texttemplate.New("text").ParseFS(templateFS, "templates/*.txt.tmpl"))
	htmlTemplates = htmltemplate.Must(htmltemplate.New("html").ParseFS(templateFS, "templates/*.html.tmpl"))
)

// Render executes the text and, when present, HTML variants of name.
func Render(name string, data interface{}) (text string, html string, err error) {
	textBuf := &bytes.Buffer{}
	if err := textTemplates.ExecuteTemplate(textBuf, name+".txt.tmpl", data); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", name, err)
	}

	if htmlTemplates.Lookup(name+".html.tmpl") != nil {
		htmlBuf := &bytes.Buffer{}
		if err := htmlTemplates.ExecuteTemplate(htmlBuf, name+".html.tmpl", data); err != nil {
			return "", "", fmt.Errorf("render %s html: %w", name, err)
		}
		html = htmlBuf.String()
	}

	return strings.TrimSpace(textBuf.String()) + "\n", html, nil
}

// TemplateNames lists the embedded template base names.
func TemplateNames() ([]string, error) {
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		base := strings.SplitN(e.Name(), ".", 2)[0]
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		names = append(names, base)
	}
	return names, nil
}

// NoticeData feeds the reminder and new assignment templates.
type NoticeData struct {
	Title       string
	Course      string
	Type        string
	Date        string
	DaysUntil   int
	FrontendURL string
}
