// Package document holds the paragraph/run model that edits are applied to.
package document

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Run is a span of text sharing one style.
type Run struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// Paragraph is an ordered sequence of runs. Style applies where a run has none.
type Paragraph struct {
	Style string `json:"style,omitempty"`
	Runs  []Run  `json:"runs"`
}

// Document is an ordered sequence of paragraphs.
type Document struct {
	Paragraphs []Paragraph `json:"paragraphs"`
}

// NewParagraph builds a single-run paragraph.
func NewParagraph(style, text string) Paragraph {
	p := Paragraph{Style: style}
	if text != "" {
		p.Runs = []Run{{Text: text}}
	}
	return p
}

// Text concatenates the paragraph's runs.
func (p Paragraph) Text() string {
	if len(p.Runs) == 1 {
		return p.Runs[0].Text
	}
	var b strings.Builder
	for _, run := range p.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

// Clone returns a deep copy of p.
func (p Paragraph) Clone() Paragraph {
	out := Paragraph{Style: p.Style}
	if p.Runs != nil {
		out.Runs = make([]Run, len(p.Runs))
		copy(out.Runs, p.Runs)
	}
	return out
}

// Clone returns a deep copy of d; edits on the copy never reach d.
func (d Document) Clone() Document {
	out := Document{}
	if d.Paragraphs != nil {
		out.Paragraphs = make([]Paragraph, len(d.Paragraphs))
		for i, p := range d.Paragraphs {
			out.Paragraphs[i] = p.Clone()
		}
	}
	return out
}

// Text joins the non-blank paragraphs with newlines.
func (d Document) Text() string {
	lines := make([]string, 0, len(d.Paragraphs))
	for _, p := range d.Paragraphs {
		text := p.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// Equal reports whether a and b have identical paragraphs, runs, text and styles.
func Equal(a, b Document) bool {
	if len(a.Paragraphs) != len(b.Paragraphs) {
		return false
	}
	for i := range a.Paragraphs {
		pa, pb := a.Paragraphs[i], b.Paragraphs[i]
		if pa.Style != pb.Style || len(pa.Runs) != len(pb.Runs) {
			return false
		}
		for j := range pa.Runs {
			if pa.Runs[j] != pb.Runs[j] {
				return false
			}
		}
	}
	return true
}

// Decode reads the JSON interchange form.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Encode writes the JSON interchange form.
func Encode(w io.Writer, doc Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}
