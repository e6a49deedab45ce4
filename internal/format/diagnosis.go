// Package format turns normalized diagnosis service replies into
// display-ready renderings. Everything here is pure: no I/O, and inputs are
// never mutated.
package format

import (
	"slices"
	"strings"

	"github.com/kalambet/faultchat/internal/diagnosis"
)

// Fixed user-facing texts.
const (
	NoMatchMessage = "No matching faults found. Please provide more details."
	NoCausesNotice = "No specific causes were identified for this fault."
)

// RenderedCause is one cause ready for display.
type RenderedCause struct {
	Name        string   `json:"name"`
	Probability float64  `json:"probability"`
	Percent     int      `json:"percent"`
	Tier        Tier     `json:"-"`
	TierLabel   string   `json:"tier"`
	Checks      []string `json:"checks"`
	Actions     []string `json:"actions"`
}

// Reinterpretation records the server rewriting the user's text.
type Reinterpretation struct {
	Original string `json:"original"`
	Enhanced string `json:"enhanced"`
}

// Alternative is a non-primary candidate fault.
type Alternative struct {
	Fault   string `json:"fault"`
	Percent *int   `json:"percent,omitempty"`
	Source  string `json:"source,omitempty"`
}

// RenderedDiagnosis is the display form of a terminal reply.
type RenderedDiagnosis struct {
	// NoMatch is set when the reply names no fault; Message then holds the
	// fixed no-match text and the fault fields are empty.
	NoMatch bool   `json:"no_match"`
	Message string `json:"message,omitempty"`

	Fault            string            `json:"fault,omitempty"`
	Confidence       *int              `json:"confidence,omitempty"`
	Source           string            `json:"source,omitempty"`
	Symptoms         []string          `json:"symptoms,omitempty"`
	Reinterpretation *Reinterpretation `json:"reinterpretation,omitempty"`
	Causes           []RenderedCause   `json:"causes,omitempty"`
	// CausesNotice replaces the cause list when the fault has no causes.
	CausesNotice string            `json:"causes_notice,omitempty"`
	Alternatives []Alternative     `json:"alternatives,omitempty"`
	Notice       *diagnosis.Notice `json:"notice,omitempty"`
}

// FormatDiagnosis renders d. The first candidate is the primary fault; its
// causes are stable-sorted by descending probability. The remaining
// candidates are listed as alternatives in server order.
func FormatDiagnosis(d diagnosis.Diagnosis) RenderedDiagnosis {
	var out RenderedDiagnosis
	if d.Notice != nil {
		n := *d.Notice
		n.MissingTerms = slices.Clone(n.MissingTerms)
		out.Notice = &n
	}

	if d.Empty() {
		out.NoMatch = true
		out.Message = NoMatchMessage
		return out
	}

	primary := d.Candidates[0]
	out.Fault = primary.Fault
	out.Confidence = percentPtr(primary.Confidence)
	out.Source = SourceLabel(primary.Source)
	out.Symptoms = slices.Clone(primary.Symptoms)

	if primary.OriginalQuery != "" && primary.EnhancedQuery != "" && primary.OriginalQuery != primary.EnhancedQuery {
		out.Reinterpretation = &Reinterpretation{
			Original: primary.OriginalQuery,
			Enhanced: primary.EnhancedQuery,
		}
	}

	if len(primary.Causes) == 0 {
		out.CausesNotice = NoCausesNotice
	} else {
		out.Causes = renderCauses(primary.Causes)
	}

	for _, f := range d.Candidates[1:] {
		if strings.TrimSpace(f.Fault) == "" {
			continue
		}
		out.Alternatives = append(out.Alternatives, Alternative{
			Fault:   f.Fault,
			Percent: percentPtr(f.Confidence),
			Source:  SourceLabel(f.Source),
		})
	}
	return out
}

func renderCauses(causes []diagnosis.Cause) []RenderedCause {
	sorted := slices.Clone(causes)
	slices.SortStableFunc(sorted, func(a, b diagnosis.Cause) int {
		switch {
		case a.Probability > b.Probability:
			return -1
		case a.Probability < b.Probability:
			return 1
		}
		return 0
	})

	out := make([]RenderedCause, len(sorted))
	for i, c := range sorted {
		tier := TierFor(c.Probability)
		out[i] = RenderedCause{
			Name:        c.Name,
			Probability: c.Probability,
			Percent:     Percent(c.Probability),
			Tier:        tier,
			TierLabel:   tier.String(),
			Checks:      slices.Clone(c.Checks),
			Actions:     slices.Clone(c.Actions),
		}
	}
	return out
}

func percentPtr(p *float64) *int {
	if p == nil {
		return nil
	}
	v := Percent(*p)
	return &v
}

// SourceLabel names the engine that produced a candidate.
func SourceLabel(source string) string {
	switch source {
	case "rule_engine_hybrid", "rule_engine", "rule":
		return "rule engine"
	case "neural_engine_hybrid", "neural_engine", "neural":
		return "neural engine"
	case "both_engines":
		return "rule and neural engines"
	}
	return source
}
