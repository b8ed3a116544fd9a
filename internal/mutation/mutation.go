// Package mutation applies batches of proposed edits to a document.
//
// Operations locate their target by content, never by paragraph index, so an
// insertion earlier in a batch cannot redirect a later operation. An
// operation whose anchor is missing is skipped and reported; it never aborts
// the rest of the batch.
package mutation

import (
	"strings"

	"resumelab/api/internal/document"
)

// Kind names an operation variant.
type Kind string

const (
	KindAppendToList      Kind = "append_to_list"
	KindInsertAfterAnchor Kind = "insert_after_anchor"
	KindFindAndReplace    Kind = "find_and_replace"
)

// Skip reasons.
const (
	ReasonAnchorNotFound = "anchor not found"
	ReasonEmptyInput     = "empty input"
)

// Operation is one of AppendToList, InsertAfterAnchor or FindAndReplace.
type Operation interface {
	Kind() Kind
	apply(doc *document.Document) Outcome
}

// AppendToList appends items to the first paragraph whose trimmed text starts
// with AnchorPrefix, ignoring case.
type AppendToList struct {
	AnchorPrefix string   `json:"anchorPrefix"`
	Items        []string `json:"items"`
}

// InsertAfterAnchor inserts NewText as a paragraph after the first paragraph
// containing AnchorSubstring.
type InsertAfterAnchor struct {
	AnchorSubstring string `json:"anchorSubstring"`
	NewText         string `json:"newText"`
}

// FindAndReplace replaces the first occurrence of Find with Replace.
type FindAndReplace struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

func (AppendToList) Kind() Kind      { return KindAppendToList }
func (InsertAfterAnchor) Kind() Kind { return KindInsertAfterAnchor }
func (FindAndReplace) Kind() Kind    { return KindFindAndReplace }

// Outcome records what one operation did.
type Outcome struct {
	Index     int    `json:"index"`
	Kind      Kind   `json:"kind"`
	Applied   bool   `json:"applied"`
	Paragraph int    `json:"paragraph"`
	Reason    string `json:"reason,omitempty"`
}

// Report lists one Outcome per operation, in batch order.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Applied counts the operations that changed the document.
func (r Report) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Applied {
			n++
		}
	}
	return n
}

// Skipped returns the outcomes of operations that were no-ops.
func (r Report) Skipped() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Applied {
			out = append(out, o)
		}
	}
	return out
}

// ApplyBatch applies ops in order to a private copy of doc and returns it.
// doc itself is never modified.
func ApplyBatch(doc document.Document, ops []Operation) (document.Document, Report) {
	out := doc.Clone()
	report := Report{Outcomes: make([]Outcome, 0, len(ops))}
	for i, op := range ops {
		var outcome Outcome
		if op == nil {
			outcome = skipped(ReasonEmptyInput)
		} else {
			outcome = op.apply(&out)
			outcome.Kind = op.Kind()
		}
		outcome.Index = i
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return out, report
}

func applied(paragraph int) Outcome {
	return Outcome{Applied: true, Paragraph: paragraph}
}

func skipped(reason string) Outcome {
	return Outcome{Paragraph: -1, Reason: reason}
}

// listSeparators end a paragraph that can take more items without a new " |".
const listSeparators = "|.,"

func (op AppendToList) apply(doc *document.Document) Outcome {
	prefix := strings.ToUpper(strings.TrimSpace(op.AnchorPrefix))
	items := nonBlank(op.Items)
	if prefix == "" || len(items) == 0 {
		return skipped(ReasonEmptyInput)
	}

	for i := range doc.Paragraphs {
		p := &doc.Paragraphs[i]
		trimmed := strings.TrimSpace(p.Text())
		if !strings.HasPrefix(strings.ToUpper(trimmed), prefix) {
			continue
		}
		var suffix strings.Builder
		if trimmed != "" && !strings.ContainsAny(trimmed[len(trimmed)-1:], listSeparators) {
			suffix.WriteString(" |")
		}
		suffix.WriteString(" ")
		suffix.WriteString(strings.Join(items, " | "))
		appendText(p, suffix.String())
		return applied(i)
	}
	return skipped(ReasonAnchorNotFound)
}

// appendText extends the last run that carries text so the appended text
// keeps its style. Trailing empty runs hold no text, so skipping them keeps
// the paragraph's reading order.
func appendText(p *document.Paragraph, text string) {
	if len(p.Runs) == 0 {
		p.Runs = []document.Run{{Text: text}}
		return
	}
	last := len(p.Runs) - 1
	for i := last; i >= 0; i-- {
		if p.Runs[i].Text != "" {
			last = i
			break
		}
	}
	p.Runs[last].Text += text
}

func (op InsertAfterAnchor) apply(doc *document.Document) Outcome {
	anchor := strings.TrimSpace(op.AnchorSubstring)
	if anchor == "" || strings.TrimSpace(op.NewText) == "" {
		return skipped(ReasonEmptyInput)
	}

	for i, p := range doc.Paragraphs {
		if !strings.Contains(strings.TrimSpace(p.Text()), anchor) {
			continue
		}
		inserted := document.NewParagraph(p.Style, op.NewText)
		paragraphs := make([]document.Paragraph, 0, len(doc.Paragraphs)+1)
		paragraphs = append(paragraphs, doc.Paragraphs[:i+1]...)
		paragraphs = append(paragraphs, inserted)
		paragraphs = append(paragraphs, doc.Paragraphs[i+1:]...)
		doc.Paragraphs = paragraphs
		return applied(i + 1)
	}
	return skipped(ReasonAnchorNotFound)
}

func (op FindAndReplace) apply(doc *document.Document) Outcome {
	if op.Find == "" {
		return skipped(ReasonEmptyInput)
	}
	for i := range doc.Paragraphs {
		p := &doc.Paragraphs[i]
		start := strings.Index(p.Text(), op.Find)
		if start < 0 {
			continue
		}
		p.Runs = replaceRange(p.Runs, start, start+len(op.Find), op.Replace)
		return applied(i)
	}
	return skipped(ReasonAnchorNotFound)
}

// replaceRange substitutes the byte range [start,end) of the concatenated run
// text. The run holding start receives the replacement in its own style;
// runs wholly inside the range are dropped, and the tail of the run holding
// end keeps that run's style.
func replaceRange(runs []document.Run, start, end int, replacement string) []document.Run {
	out := make([]document.Run, 0, len(runs))
	offset := 0
	for _, run := range runs {
		runStart, runEnd := offset, offset+len(run.Text)
		offset = runEnd

		switch {
		case runEnd <= start, runStart >= end:
			out = append(out, run)
		case runStart <= start:
			tail := ""
			if end <= runEnd {
				tail = run.Text[end-runStart:]
			}
			run.Text = run.Text[:start-runStart] + replacement + tail
			if run.Text != "" {
				out = append(out, run)
			}
		case end < runEnd:
			run.Text = run.Text[end-runStart:]
			out = append(out, run)
		}
	}
	return out
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
