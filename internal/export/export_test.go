package export

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"resumelab/api/internal/document"
)

func sampleDocument() document.Document {
	return document.Document{Paragraphs: []document.Paragraph{
		document.NewParagraph("Title", "Ada Lovelace"),
		document.NewParagraph("Heading 2", "Experience"),
		document.NewParagraph("List Bullet", "Built <analytical> engines & tools"),
		document.NewParagraph("Normal", "   "),
		{Style: "Normal", Runs: []document.Run{{Text: "SKILLS: ", Style: "Strong"}, {Text: "Go | SQL"}}},
	}}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"html", FormatHTML, false},
		{"pdf", FormatPDF, false},
		{"docx", FormatDOCX, false},
		{"rtf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseFormat(%q) = %q, %v", tt.input, got, err)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		input   string
		want    Page
		wantErr bool
	}{
		{"", PageLetter, false},
		{"Letter", PageLetter, false},
		{" a4 ", PageA4, false},
		{"legal", Page{}, true},
	}
	for _, tt := range tests {
		got, err := ParsePage(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePage(%q) = %+v, %v", tt.input, got, err)
		}
	}
}

func TestPrintParamsUseSheet(t *testing.T) {
	params := printParams(PageA4)
	if params.PaperWidth != 8.27 || params.PaperHeight != 11.69 {
		t.Fatalf("paper = %vx%v", params.PaperWidth, params.PaperHeight)
	}
	if params.MarginTop != 0.5 || params.MarginLeft != 0.5 || params.PreferCSSPageSize {
		t.Fatalf("params = %+v", params)
	}
}

func TestNewTemplateData(t *testing.T) {
	data := NewTemplateData(sampleDocument(), "CV")
	if len(data.Paragraphs) != 4 {
		t.Fatalf("paragraphs = %d, want 4 (blank dropped)", len(data.Paragraphs))
	}
	want := []string{"h1", "h2", "li", "p"}
	for i, tag := range want {
		if data.Paragraphs[i].Tag != tag {
			t.Errorf("paragraph %d tag = %q, want %q", i, data.Paragraphs[i].Tag, tag)
		}
	}
	if data.Paragraphs[2].Class != "list-bullet" {
		t.Errorf("class = %q", data.Paragraphs[2].Class)
	}
}

func TestRenderHTMLEscapesText(t *testing.T) {
	res, err := Render(context.Background(), sampleDocument(), FormatHTML, "Ada Lovelace CV")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := string(res.Data)

	if res.Filename != "Ada-Lovelace-CV.html" || !strings.HasPrefix(res.MimeType, "text/html") {
		t.Fatalf("result meta = %q %q", res.Filename, res.MimeType)
	}
	if !strings.Contains(html, `<h1 class="title">Ada Lovelace</h1>`) {
		t.Error("HTML missing title heading")
	}
	if !strings.Contains(html, "Built &lt;analytical&gt; engines &amp; tools") {
		t.Error("run text should be escaped")
	}
	if !strings.Contains(html, `<span class="strong">SKILLS: </span>Go | SQL`) {
		t.Error("styled run not rendered as span")
	}
}

func TestRenderJSON(t *testing.T) {
	doc := sampleDocument()
	res, err := Render(context.Background(), doc, FormatJSON, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Filename != "document.json" {
		t.Fatalf("filename = %q", res.Filename)
	}
	var decoded document.Document
	if err := json.Unmarshal(res.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !document.Equal(decoded, doc) {
		t.Fatal("json export does not reproduce the document")
	}
}

func TestRenderUnsupported(t *testing.T) {
	if _, err := Render(context.Background(), sampleDocument(), Format("rtf"), "x"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRenderDOCXDependency(t *testing.T) {
	_, err := Render(context.Background(), sampleDocument(), FormatDOCX, "x")
	if _, lookErr := exec.LookPath("pandoc"); lookErr != nil {
		if !errors.Is(err, ErrDOCXDependencyMissing) {
			t.Fatalf("expected ErrDOCXDependencyMissing, got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("Render(docx) error = %v", err)
	}
}

func TestRenderPDFDependency(t *testing.T) {
	if chromeAvailable() {
		t.Skip("chrome installed; pdf rendering covered by integration runs")
	}
	if _, err := Render(context.Background(), sampleDocument(), FormatPDF, "x"); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}
