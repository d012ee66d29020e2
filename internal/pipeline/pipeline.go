// Package pipeline drives the seven-stage paper analysis: summary,
// critique, experiment plan, code, slides, interpretation, validation.
// Stages run strictly one after another; each consumes the outputs of
// earlier stages plus a fixed instruction, and the assembled result bundle
// is returned in one piece or not at all.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"scholarmate/internal/config"
	"scholarmate/internal/document"
	"scholarmate/internal/gemini"
)

// Progress receives a short human-readable status line before each stage
// call. It is invoked synchronously and must not block.
type Progress func(message string)

// failureMode names what a stage does when the remote call succeeds but
// yields no usable output. A transport failure (retry exhaustion or any
// non-rate-limit error) always aborts the whole run instead; the two-tier
// policy is deliberate.
type failureMode int

const (
	// degradeToText substitutes "Failed to generate <name>".
	degradeToText failureMode = iota

	// degradeToSlides substitutes the one-entry placeholder slide list.
	degradeToSlides
)

type stage struct {
	// label appears in progress notices; name in placeholder text.
	label string
	name  string

	mode    failureMode
	request func() gemini.GenerateRequest

	// extract postprocesses a non-empty response (nil means CleanText).
	// assign stores the stage's text output on the bundle; the slides
	// stage stores through its own parse path instead.
	extract func(string) string
	assign  func(string)
}

// Pipeline orchestrates the seven generation stages.
type Pipeline struct {
	gen    gemini.Generator
	delay  time.Duration
	sleep  func(time.Duration)
	logger *zap.Logger
}

// New creates a pipeline around a generator. The inter-stage delay comes
// from configuration (12s by default, a non-adaptive rate-limit
// mitigation applied regardless of whether the prior call retried).
func New(gen gemini.Generator, cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		gen:    gen,
		delay:  cfg.GetStageDelay(),
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Run executes all seven stages in order and returns the fully populated
// result bundle. Any transport-level stage failure aborts the run; no
// partial bundle is ever returned.
func (p *Pipeline) Run(ctx context.Context, doc *document.Document, progress Progress) (*Result, error) {
	res := &Result{}
	stages := p.stages(doc, res)

	for i, st := range stages {
		if progress != nil {
			progress(fmt.Sprintf("Step %d/%d: %s", i+1, len(stages), st.label))
		}

		text, err := p.gen.Generate(ctx, st.request())
		if err != nil {
			return nil, fmt.Errorf("%s stage failed: %w", strings.ToLower(st.label), err)
		}

		switch st.mode {
		case degradeToSlides:
			slides, perr := ParseSlides(text)
			if perr != nil {
				p.logger.Warn("slide parsing failed, using placeholder",
					zap.String("stage", st.label), zap.Error(perr))
				slides = PlaceholderSlides()
			}
			res.Slides = slides

		case degradeToText:
			out := ""
			if strings.TrimSpace(text) != "" {
				extract := st.extract
				if extract == nil {
					extract = CleanText
				}
				out = extract(text)
			}
			if out == "" {
				p.logger.Warn("empty response, using placeholder", zap.String("stage", st.label))
				out = "Failed to generate " + st.name
			}
			st.assign(out)
		}

		if i < len(stages)-1 {
			p.sleep(p.delay)
		}
	}

	return res, nil
}

// stages wires each stage's request context: exactly the documented prior
// outputs plus the stage's fixed instruction. Stages 1, 2, 3, 5 and 7
// attach the original document; 4 and 6 work from the experiment plan
// alone. Request closures read res, which only ever holds outputs of
// stages that already completed.
func (p *Pipeline) stages(doc *document.Document, res *Result) []stage {
	docPart := gemini.BlobPart(doc.Data, doc.MIMEType)

	return []stage{
		{
			label: "Summary",
			name:  "Summary",
			mode:  degradeToText,
			request: func() gemini.GenerateRequest {
				return gemini.GenerateRequest{
					System: systemInstruction,
					Parts:  []gemini.Part{docPart, gemini.TextPart(promptSummary)},
				}
			},
			assign: func(s string) { res.Summary = s },
		},
		{
			label: "Critique",
			name:  "Critique",
			mode:  degradeToText,
			request: func() gemini.GenerateRequest {
				return gemini.GenerateRequest{
					System: systemInstruction,
					Parts:  []gemini.Part{docPart, gemini.TextPart(promptCritique)},
				}
			},
			assign: func(s string) { res.Critique = s },
		},
		{
			label: "Experiment Plan",
			name:  "Experiment Plan",
			mode:  degradeToText,
			request: func() gemini.GenerateRequest {
				return gemini.GenerateRequest{
					System: systemInstruction,
					Parts:  []gemini.Part{docPart, gemini.TextPart(promptExperiment)},
				}
			},
			assign: func(s string) { res.ExperimentPlan = s },
		},
		{
			label: "Python Code",
			name:  "Python Code",
			mode:  degradeToText,
			request: func() gemini.GenerateRequest {
				return gemini.GenerateRequest{
					System: systemInstruction,
					Parts: []gemini.Part{
						gemini.TextPart("Experiment Plan:\n" + res.ExperimentPlan),
						gemini.TextPart(promptCodegen),
					},
				}
			},
			extract: ExtractCode,
			assign:  func(s string) { res.Code = s },
		},
		{
			label: "Slides",
			name:  "Slides",
			mode:  degradeToSlides,
			request: func() gemini.GenerateRequest {
				return gemini.GenerateRequest{
					System: systemInstruction,
					Parts: []gemini.Part{
						docPart,
						gemini.TextPart(fmt.Sprintf("Summary:\n%s\n\nPlan:\n%s", res.Summary, res.ExperimentPlan)),
						gemini.TextPart(promptSlides),
					},
					JSON:   true,
					Schema: slideSchema(),
				}
			},
		},
		{
			label: "Interpretation",
			name:  "Interpretation",
			mode:  degradeToText,
			request: func() gemini.GenerateRequest {
				return gemini.GenerateRequest{
					System: systemInstruction,
					Parts: []gemini.Part{
						gemini.TextPart("Experiment Plan:\n" + res.ExperimentPlan),
						gemini.TextPart(promptInterpretation),
					},
				}
			},
			assign: func(s string) { res.Interpretation = s },
		},
		{
			label: "Validation",
			name:  "Validation Report",
			mode:  degradeToText,
			request: func() gemini.GenerateRequest {
				return gemini.GenerateRequest{
					System: systemInstruction,
					Parts: []gemini.Part{
						docPart,
						gemini.TextPart(fmt.Sprintf("Summary: %s\nCritique: %s\nExperiment Plan: %s",
							res.Summary, res.Critique, res.ExperimentPlan)),
						gemini.TextPart(promptValidation),
					},
				}
			},
			assign: func(s string) { res.Validation = s },
		},
	}
}
