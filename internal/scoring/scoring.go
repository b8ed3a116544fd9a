// Package scoring combines per-category evaluation scores into one overall score.
package scoring

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Known categories.
const (
	Tailoring = "tailoring"
	Content   = "content"
	Format    = "format"
	Sections  = "sections"
	Style     = "style"
)

// Weights are percentages and sum to 100.
var Weights = map[string]int{
	Tailoring: 35,
	Content:   20,
	Format:    15,
	Sections:  15,
	Style:     15,
}

// Categories lists the known categories in weight order.
var Categories = []string{Tailoring, Content, Format, Sections, Style}

// ErrNoCategories indicates a payload carries none of the known categories.
var ErrNoCategories = errors.New("scoring: no known categories in analysis")

// Score is a category score in [0,100]. Decoding never fails: numeric strings
// are parsed, anything else becomes 0, out of range values are clamped.
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	raw = strings.Trim(raw, `"`)
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		*s = 0
		return nil
	}
	*s = Score(value).Clamp()
	return nil
}

// Clamp coerces s into [0,100]; NaN and infinities become 0.
func (s Score) Clamp() Score {
	v := float64(s)
	switch {
	case math.IsNaN(v), math.IsInf(v, 0), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return s
	}
}

// Criterion is one pass/fail check inside a category.
type Criterion struct {
	Criterion string `json:"criterion"`
	Passed    bool   `json:"passed"`
	Comment   string `json:"comment"`
}

// Category is one scored section of an analysis.
type Category struct {
	Score    Score       `json:"score"`
	Feedback string      `json:"feedback"`
	Details  []Criterion `json:"details"`
}

// Aggregate returns round(Σ score·weight) over the known categories, clamped
// to [0,100]. Missing categories count as zero; unknown ones are ignored.
func Aggregate(categories map[string]Category) int {
	var total float64
	for name, weight := range Weights {
		category, ok := categories[name]
		if !ok {
			continue
		}
		total += float64(category.Score.Clamp()) * float64(weight)
	}
	overall := int(math.Round(total / 100))
	if overall < 0 {
		return 0
	}
	if overall > 100 {
		return 100
	}
	return overall
}

// Breakdown holds the known categories of an analysis. A nil field means the
// evaluator did not return that category.
type Breakdown struct {
	Tailoring *Category `json:"tailoring,omitempty"`
	Content   *Category `json:"content,omitempty"`
	Format    *Category `json:"format,omitempty"`
	Sections  *Category `json:"sections,omitempty"`
	Style     *Category `json:"style,omitempty"`
}

// Map returns the present categories keyed by name.
func (b Breakdown) Map() map[string]Category {
	out := make(map[string]Category, len(Categories))
	for name, category := range map[string]*Category{
		Tailoring: b.Tailoring,
		Content:   b.Content,
		Format:    b.Format,
		Sections:  b.Sections,
		Style:     b.Style,
	} {
		if category != nil {
			out[name] = *category
		}
	}
	return out
}

// Target is the score an optimisation pass aims for: ten percent above
// score, capped at 100.
func Target(score int) int {
	target := int(math.Round(float64(score) * 1.10))
	if target > 100 {
		return 100
	}
	if target < 0 {
		return 0
	}
	return target
}

// Analysis is the evaluation payload cached per key.
type Analysis struct {
	OverallScore int       `json:"overall_score"`
	Summary      string    `json:"summary"`
	Breakdown    Breakdown `json:"analysis_breakdown"`
}

// UnmarshalJSON tolerates a fractional or quoted overall score; Finalize
// recomputes it anyway.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var wire struct {
		OverallScore Score     `json:"overall_score"`
		Summary      string    `json:"summary"`
		Breakdown    Breakdown `json:"analysis_breakdown"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	a.OverallScore = int(math.Round(float64(wire.OverallScore.Clamp())))
	a.Summary = wire.Summary
	a.Breakdown = wire.Breakdown
	return nil
}

// Finalize replaces the evaluator's overall score with the weighted one.
func (a *Analysis) Finalize() int {
	a.OverallScore = Aggregate(a.Breakdown.Map())
	return a.OverallScore
}

// Validate rejects payloads without any known category.
func (a Analysis) Validate() error {
	if len(a.Breakdown.Map()) == 0 {
		return ErrNoCategories
	}
	return nil
}

// Decode parses and validates a stored or evaluator-provided payload.
func Decode(data []byte) (Analysis, error) {
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return Analysis{}, err
	}
	if err := a.Validate(); err != nil {
		return Analysis{}, err
	}
	return a, nil
}
