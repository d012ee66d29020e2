package pipeline

import (
	"regexp"
	"strings"
)

var (
	leadingFenceRe  = regexp.MustCompile("^```[a-zA-Z]*\n")
	trailingFenceRe = regexp.MustCompile("```$")
	codeBlockRe     = regexp.MustCompile("(?s)```(?:python)?\\s*(.*?)```")
)

// CleanText strips a leading code fence (language-tagged or generic) and a
// trailing generic fence, then trims surrounding whitespace. Models wrap
// plain-text answers in fences often enough that every text stage runs
// its output through this.
func CleanText(text string) string {
	text = strings.TrimSpace(text)
	text = leadingFenceRe.ReplaceAllString(text, "")
	text = trailingFenceRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractCode pulls the first fenced code block out of a model response,
// dropping the fences and any language tag. A response without a complete
// fenced block falls back to fence-stripped trimmed text.
func ExtractCode(text string) string {
	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return CleanText(text)
}
