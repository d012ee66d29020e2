package pipeline

import "strings"

// Slide is one slide entry: a title plus ordered bullet strings.
type Slide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// Result is the aggregate of all seven stage outputs. It is populated once
// by a pipeline run and returned atomically; consumers never see a partial
// bundle. Every text field is non-empty (possibly a placeholder) and
// Slides always has at least one entry.
type Result struct {
	Summary        string  `json:"summary"`
	Critique       string  `json:"critique"`
	ExperimentPlan string  `json:"experiment_plan"`
	Code           string  `json:"python_code"`
	Slides         []Slide `json:"slides"`
	Interpretation string  `json:"interpretation"`
	Validation     string  `json:"validation_report"`
}

// CleanValidationSentinel is the phrase the validation stage is instructed
// to emit when it finds no issues. Consumers match on this substring.
const CleanValidationSentinel = "internally consistent and grounded"

// ValidationClean reports whether the validation stage found no issues.
func (r *Result) ValidationClean() bool {
	return strings.Contains(r.Validation, CleanValidationSentinel)
}
