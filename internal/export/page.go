package export

import (
	"fmt"
	"strings"
)

// Page is a printable sheet; dimensions are in inches.
type Page struct {
	Name   string
	Width  float64
	Height float64
	Margin float64
}

var (
	PageLetter = Page{Name: "letter", Width: 8.5, Height: 11, Margin: 0.6}
	PageA4     = Page{Name: "a4", Width: 8.27, Height: 11.69, Margin: 0.5}
)

// ParsePage resolves a page size by name; empty means letter.
func ParsePage(raw string) (Page, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", PageLetter.Name:
		return PageLetter, nil
	case PageA4.Name:
		return PageA4, nil
	default:
		return Page{}, fmt.Errorf("export: unknown page size %q", raw)
	}
}
