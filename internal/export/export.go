// Package export renders structured documents into downloadable files.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"resumelab/api/internal/document"
	"resumelab/api/internal/util"
)

// Format represents the export output format
type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates the requested format is not one of the known formats.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

// ParseFormat accepts the empty string as json.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatHTML, FormatPDF, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, raw)
	}
}

// Renderer carries the print settings used for paged formats.
type Renderer struct {
	Page Page
}

// Render generates doc in the requested format on letter pages.
func Render(ctx context.Context, doc document.Document, format Format, title string) (*Result, error) {
	return Renderer{Page: PageLetter}.Render(ctx, doc, format, title)
}

func (r Renderer) Render(ctx context.Context, doc document.Document, format Format, title string) (*Result, error) {
	name := util.SanitizeFilename(title)

	if format == FormatJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		return &Result{Data: data, Filename: name + ".json", MimeType: "application/json"}, nil
	}

	html, err := RenderDocumentHTML(NewTemplateData(doc, title))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{Data: []byte(html), Filename: name + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatPDF:
		return exportPDF(ctx, html, name, r.Page)
	case FormatDOCX:
		return exportDOCX(ctx, html, name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
