package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/faultchat/internal/diagnosis"
)

func ptr(f float64) *float64 { return &f }

func overheating() diagnosis.Diagnosis {
	return diagnosis.Diagnosis{Candidates: []diagnosis.Fault{{
		Fault: "Overheating",
		Causes: []diagnosis.Cause{
			{Name: "Low coolant", Probability: 0.42, Checks: []string{"Check coolant level"}, Actions: []string{"Top up coolant"}},
			{Name: "Blocked filter", Probability: 0.85, Checks: []string{"Inspect filter"}, Actions: []string{"Clean filter"}},
		},
	}}}
}

func TestFormatDiagnosis_SortsCausesWithTiers(t *testing.T) {
	r := FormatDiagnosis(overheating())

	require.False(t, r.NoMatch)
	assert.Equal(t, "Overheating", r.Fault)
	require.Len(t, r.Causes, 2)

	assert.Equal(t, "Blocked filter", r.Causes[0].Name)
	assert.Equal(t, 85, r.Causes[0].Percent)
	assert.Equal(t, TierHigh, r.Causes[0].Tier)
	assert.Equal(t, []string{"Inspect filter"}, r.Causes[0].Checks)

	assert.Equal(t, "Low coolant", r.Causes[1].Name)
	assert.Equal(t, 42, r.Causes[1].Percent)
	assert.Equal(t, TierLow, r.Causes[1].Tier)

	md := Markdown(r)
	assert.Contains(t, md, "1. **Blocked filter** (85%, high)")
	assert.Contains(t, md, "2. **Low coolant** (42%, low)")
}

func TestFormatDiagnosis_DoesNotMutateInput(t *testing.T) {
	d := overheating()
	FormatDiagnosis(d)
	assert.Equal(t, "Low coolant", d.Candidates[0].Causes[0].Name)
}

func TestFormatDiagnosis_Idempotent(t *testing.T) {
	d := overheating()
	assert.Equal(t, FormatDiagnosis(d), FormatDiagnosis(d))
	assert.Equal(t, Markdown(FormatDiagnosis(d)), Markdown(FormatDiagnosis(d)))
}

func TestFormatDiagnosis_StableTies(t *testing.T) {
	d := diagnosis.Diagnosis{Candidates: []diagnosis.Fault{{
		Fault: "Noise",
		Causes: []diagnosis.Cause{
			{Name: "a", Probability: 0.5},
			{Name: "b", Probability: 0.9},
			{Name: "c", Probability: 0.5},
			{Name: "d", Probability: 0.5},
		},
	}}}
	r := FormatDiagnosis(d)
	var names []string
	for _, c := range r.Causes {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, names)
}

func TestFormatDiagnosis_NoMatch(t *testing.T) {
	for name, d := range map[string]diagnosis.Diagnosis{
		"no candidates": {},
		"blank fault":   {Candidates: []diagnosis.Fault{{Fault: ""}}},
	} {
		t.Run(name, func(t *testing.T) {
			r := FormatDiagnosis(d)
			assert.True(t, r.NoMatch)
			assert.Equal(t, NoMatchMessage, r.Message)
			assert.Empty(t, r.Causes)
			assert.Contains(t, Markdown(r), NoMatchMessage)
		})
	}
}

func TestFormatDiagnosis_NoCauses(t *testing.T) {
	r := FormatDiagnosis(diagnosis.Diagnosis{Candidates: []diagnosis.Fault{{Fault: "Leak"}}})
	assert.False(t, r.NoMatch)
	assert.Empty(t, r.Causes)
	assert.Equal(t, NoCausesNotice, r.CausesNotice)
	assert.Contains(t, Markdown(r), NoCausesNotice)
}

func TestFormatDiagnosis_Reinterpretation(t *testing.T) {
	tests := []struct {
		name     string
		original string
		enhanced string
		want     bool
	}{
		{"differ", "engine hot", "main engine overheating", true},
		{"case only", "Engine hot", "engine hot", true},
		{"same", "engine hot", "engine hot", false},
		{"missing enhanced", "engine hot", "", false},
		{"missing original", "", "main engine overheating", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FormatDiagnosis(diagnosis.Diagnosis{Candidates: []diagnosis.Fault{{
				Fault:         "Overheating",
				OriginalQuery: tt.original,
				EnhancedQuery: tt.enhanced,
			}}})
			if tt.want {
				require.NotNil(t, r.Reinterpretation)
				assert.Equal(t, tt.enhanced, r.Reinterpretation.Enhanced)
			} else {
				assert.Nil(t, r.Reinterpretation)
			}
		})
	}
}

func TestFormatDiagnosis_AlternativesAndNotice(t *testing.T) {
	d := diagnosis.Diagnosis{
		Candidates: []diagnosis.Fault{
			{Fault: "Fuel leak", Confidence: ptr(0.705), Source: "both_engines"},
			{Fault: "Injector wear", Confidence: ptr(0.3), Source: "neural_engine_hybrid"},
			{Fault: "Hose crack"},
		},
		Notice: &diagnosis.Notice{Message: "Some terms are unknown.", MissingTerms: []string{"scrubber"}},
	}
	r := FormatDiagnosis(d)

	require.NotNil(t, r.Confidence)
	assert.Equal(t, 71, *r.Confidence)
	assert.Equal(t, "rule and neural engines", r.Source)
	require.Len(t, r.Alternatives, 2)
	assert.Equal(t, "Injector wear", r.Alternatives[0].Fault)
	assert.Nil(t, r.Alternatives[1].Percent)

	md := Markdown(r)
	assert.Contains(t, md, "- Injector wear (30%)")
	assert.Contains(t, md, "> Some terms are unknown.")
	assert.Contains(t, md, "scrubber")
}
