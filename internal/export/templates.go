package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"resumelab/api/internal/document"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate = template.Must(template.ParseFS(templateFS, "templates/document.html"))

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title      string
	Paragraphs []TemplateParagraph
}

// TemplateParagraph is one block of the rendered document.
type TemplateParagraph struct {
	Tag   string
	Class string
	Runs  []TemplateRun
}

type TemplateRun struct {
	Text  string
	Class string
}

// NewTemplateData maps paragraph styles to HTML elements. Blank paragraphs are dropped.
func NewTemplateData(doc document.Document, title string) TemplateData {
	data := TemplateData{Title: title}
	for _, p := range doc.Paragraphs {
		if strings.TrimSpace(p.Text()) == "" {
			continue
		}
		block := TemplateParagraph{Tag: blockTag(p.Style), Class: styleClass(p.Style)}
		for _, r := range p.Runs {
			block.Runs = append(block.Runs, TemplateRun{Text: r.Text, Class: styleClass(r.Style)})
		}
		data.Paragraphs = append(data.Paragraphs, block)
	}
	return data
}

func blockTag(style string) string {
	switch s := strings.ToLower(strings.TrimSpace(style)); {
	case s == "title":
		return "h1"
	case strings.HasPrefix(s, "heading "):
		level := strings.TrimPrefix(s, "heading ")
		if len(level) == 1 && level[0] >= '1' && level[0] <= '6' {
			return "h" + level
		}
		return "h2"
	case strings.HasPrefix(s, "list"):
		return "li"
	default:
		return "p"
	}
}

func styleClass(style string) string {
	return strings.Join(strings.Fields(strings.ToLower(style)), "-")
}

// RenderDocumentHTML renders the document template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
