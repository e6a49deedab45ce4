package format

import (
	"fmt"
	"strings"
)

// Markdown renders a diagnosis as the transcript text.
func Markdown(r RenderedDiagnosis) string {
	var b strings.Builder
	if r.NoMatch {
		b.WriteString(r.Message)
		b.WriteString("\n")
		writeNotice(&b, r)
		return b.String()
	}

	fmt.Fprintf(&b, "## %s\n\n", r.Fault)

	var meta []string
	if r.Confidence != nil {
		meta = append(meta, fmt.Sprintf("Confidence: %d%%", *r.Confidence))
	}
	if r.Source != "" {
		meta = append(meta, "Source: "+r.Source)
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " | "))
		b.WriteString("\n\n")
	}

	if ri := r.Reinterpretation; ri != nil {
		fmt.Fprintf(&b, "_Interpreted %q as %q._\n\n", ri.Original, ri.Enhanced)
	}
	if len(r.Symptoms) > 0 {
		fmt.Fprintf(&b, "Symptoms: %s\n\n", strings.Join(r.Symptoms, ", "))
	}

	b.WriteString("### Possible causes\n\n")
	if r.CausesNotice != "" {
		b.WriteString(r.CausesNotice)
		b.WriteString("\n")
	}
	for i, c := range r.Causes {
		fmt.Fprintf(&b, "%d. **%s** (%d%%, %s)\n", i+1, c.Name, c.Percent, c.TierLabel)
		for _, s := range c.Checks {
			fmt.Fprintf(&b, "   - Check: %s\n", s)
		}
		for _, s := range c.Actions {
			fmt.Fprintf(&b, "   - Action: %s\n", s)
		}
	}

	if len(r.Alternatives) > 0 {
		b.WriteString("\n### Other candidates\n\n")
		for _, a := range r.Alternatives {
			b.WriteString("- ")
			b.WriteString(a.Fault)
			if a.Percent != nil {
				fmt.Fprintf(&b, " (%d%%)", *a.Percent)
			}
			b.WriteString("\n")
		}
	}

	writeNotice(&b, r)
	return b.String()
}

func writeNotice(b *strings.Builder, r RenderedDiagnosis) {
	n := r.Notice
	if n == nil {
		return
	}
	b.WriteString("\n")
	if n.Message != "" {
		fmt.Fprintf(b, "> %s\n", n.Message)
	}
	if len(n.MissingTerms) > 0 {
		fmt.Fprintf(b, "> Unrecognized terms: %s\n", strings.Join(n.MissingTerms, ", "))
	}
	if n.Suggestion != "" {
		fmt.Fprintf(b, "> %s\n", n.Suggestion)
	}
}

// ClarificationMarkdown renders a clarification request as transcript text.
// Options are numbered from 1.
func ClarificationMarkdown(r RenderedClarification) string {
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString("\n")
	if len(r.Options) > 0 {
		b.WriteString("\n")
		for i, o := range r.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, o)
		}
	}
	if r.FreeText {
		if len(r.Options) > 0 {
			b.WriteString("\nOr describe it in your own words.\n")
		} else {
			b.WriteString("\nPlease answer in your own words.\n")
		}
	}
	return b.String()
}
