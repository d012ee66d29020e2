package pipeline

import (
	"fmt"
	"strings"
)

// Markdown renders the result bundle as a single markdown report.
func (r *Result) Markdown() string {
	var b strings.Builder

	b.WriteString("# Paper Analysis\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString(r.Summary)
	b.WriteString("\n\n## Critical Review\n\n")
	b.WriteString(r.Critique)
	b.WriteString("\n\n## Experiment Plan\n\n")
	b.WriteString(r.ExperimentPlan)

	b.WriteString("\n\n## Reproduction Code\n\n```python\n")
	b.WriteString(r.Code)
	b.WriteString("\n```\n")

	b.WriteString("\n## Slides\n")
	for i, slide := range r.Slides {
		fmt.Fprintf(&b, "\n### %d. %s\n\n", i+1, slide.Title)
		for _, bullet := range slide.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
	}

	b.WriteString("\n## Interpretation\n\n")
	b.WriteString(r.Interpretation)

	b.WriteString("\n\n## Validation\n\n")
	if r.ValidationClean() {
		b.WriteString("**No issues found.**\n\n")
	} else {
		b.WriteString("**Issues detected.**\n\n")
	}
	b.WriteString(r.Validation)
	b.WriteString("\n")

	return b.String()
}
