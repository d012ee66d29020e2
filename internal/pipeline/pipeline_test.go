package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"scholarmate/internal/config"
	"scholarmate/internal/document"
	"scholarmate/internal/gemini"
)

func TestMain(m *testing.M) {
	// Importing the genai SDK starts an opencensus stats worker that never
	// exits; everything else must stay leak-free.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// mockGenerator returns canned responses in call order and records every
// request for inspection.
type mockGenerator struct {
	responses []string
	errs      map[int]error
	requests  []gemini.GenerateRequest
}

func (m *mockGenerator) Generate(ctx context.Context, req gemini.GenerateRequest) (string, error) {
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if err := m.errs[i]; err != nil {
		return "", err
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", nil
}

func testDoc() *document.Document {
	return &document.Document{
		Filename: "paper.pdf",
		MIMEType: document.MIMETypePDF,
		Data:     []byte("%PDF-test-payload"),
		Pages:    3,
	}
}

func newTestPipeline(gen gemini.Generator, sleeps *[]time.Duration) *Pipeline {
	p := New(gen, config.DefaultConfig(), zap.NewNop())
	p.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return p
}

var stageResponses = []string{
	"SUMMARY-TEXT",
	"CRITIQUE-TEXT",
	"PLAN-TEXT",
	"```python\nprint('hi')\n```",
	`[{"title":"Title & Problem","bullets":["point"]}]`,
	"INTERPRETATION-TEXT",
	"Outputs are internally consistent and grounded.",
}

func TestPipelineRunAssemblesBundle(t *testing.T) {
	mock := &mockGenerator{responses: stageResponses}
	var sleeps []time.Duration
	var progress []string

	res, err := newTestPipeline(mock, &sleeps).Run(context.Background(), testDoc(), func(m string) {
		progress = append(progress, m)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := &Result{
		Summary:        "SUMMARY-TEXT",
		Critique:       "CRITIQUE-TEXT",
		ExperimentPlan: "PLAN-TEXT",
		Code:           "print('hi')",
		Slides:         []Slide{{Title: "Title & Problem", Bullets: []string{"point"}}},
		Interpretation: "INTERPRETATION-TEXT",
		Validation:     "Outputs are internally consistent and grounded.",
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Run() bundle mismatch (-want +got):\n%s", diff)
	}
	if !res.ValidationClean() {
		t.Error("ValidationClean() = false for the no-issues sentinel")
	}

	// Exactly one delay between each pair of consecutive stages.
	if len(sleeps) != 6 {
		t.Errorf("inter-stage delays = %d, want 6", len(sleeps))
	}
	for i, d := range sleeps {
		if d != 12*time.Second {
			t.Errorf("delay[%d] = %v, want 12s", i, d)
		}
	}

	wantProgress := []string{
		"Step 1/7: Summary",
		"Step 2/7: Critique",
		"Step 3/7: Experiment Plan",
		"Step 4/7: Python Code",
		"Step 5/7: Slides",
		"Step 6/7: Interpretation",
		"Step 7/7: Validation",
	}
	if diff := cmp.Diff(wantProgress, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineRequestWiring(t *testing.T) {
	mock := &mockGenerator{responses: stageResponses}
	var sleeps []time.Duration

	if _, err := newTestPipeline(mock, &sleeps).Run(context.Background(), testDoc(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(mock.requests) != 7 {
		t.Fatalf("generate calls = %d, want 7", len(mock.requests))
	}

	// Stages 1, 2, 3, 5 and 7 attach the document as their first part.
	withDoc := map[int]bool{0: true, 1: true, 2: true, 4: true, 6: true}
	for i, req := range mock.requests {
		hasDoc := len(req.Parts) > 0 && req.Parts[0].Data != nil
		if hasDoc != withDoc[i] {
			t.Errorf("stage %d: document attached = %v, want %v", i+1, hasDoc, withDoc[i])
		}
		if hasDoc && req.Parts[0].MIME != document.MIMETypePDF {
			t.Errorf("stage %d: document MIME = %q", i+1, req.Parts[0].MIME)
		}
		if req.System == "" {
			t.Errorf("stage %d: missing system instruction", i+1)
		}
	}

	// Code generation sees the plan embedded in its context, no document.
	code := mock.requests[3]
	if got := code.Parts[0].Text; got != "Experiment Plan:\nPLAN-TEXT" {
		t.Errorf("code stage context = %q", got)
	}

	// Slides gets summary + plan and requests schema-validated JSON.
	slides := mock.requests[4]
	if !slides.JSON || slides.Schema == nil {
		t.Error("slides stage did not request structured output")
	}
	if got := slides.Parts[1].Text; got != "Summary:\nSUMMARY-TEXT\n\nPlan:\nPLAN-TEXT" {
		t.Errorf("slides stage context = %q", got)
	}

	// Interpretation works from the plan alone.
	interp := mock.requests[5]
	if got := interp.Parts[0].Text; got != "Experiment Plan:\nPLAN-TEXT" {
		t.Errorf("interpretation stage context = %q", got)
	}

	// Validation sees stages 1-3 plus the document.
	validation := mock.requests[6]
	wantCtx := "Summary: SUMMARY-TEXT\nCritique: CRITIQUE-TEXT\nExperiment Plan: PLAN-TEXT"
	if got := validation.Parts[1].Text; got != wantCtx {
		t.Errorf("validation stage context = %q, want %q", got, wantCtx)
	}
}

func TestPipelineEmptyResponsePlaceholders(t *testing.T) {
	mock := &mockGenerator{responses: make([]string, 7)}
	var sleeps []time.Duration

	res, err := newTestPipeline(mock, &sleeps).Run(context.Background(), testDoc(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantTexts := map[string]string{
		"summary":        res.Summary,
		"critique":       res.Critique,
		"experiment":     res.ExperimentPlan,
		"code":           res.Code,
		"interpretation": res.Interpretation,
		"validation":     res.Validation,
	}
	for field, got := range wantTexts {
		if !strings.HasPrefix(got, "Failed to generate ") {
			t.Errorf("%s = %q, want a placeholder", field, got)
		}
	}

	if len(res.Slides) != 1 || res.Slides[0].Title != SlidePlaceholderTitle {
		t.Errorf("slides = %+v, want the one-entry placeholder", res.Slides)
	}
}

func TestPipelineSlideParseFallback(t *testing.T) {
	responses := append([]string(nil), stageResponses...)
	responses[4] = "not json at all"
	mock := &mockGenerator{responses: responses}
	var sleeps []time.Duration

	res, err := newTestPipeline(mock, &sleeps).Run(context.Background(), testDoc(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Slides) != 1 || res.Slides[0].Title != SlidePlaceholderTitle {
		t.Errorf("slides = %+v, want the one-entry placeholder", res.Slides)
	}
	// The pipeline continued past the parse failure.
	if res.Validation != "Outputs are internally consistent and grounded." {
		t.Errorf("validation = %q, pipeline did not continue", res.Validation)
	}
}

func TestPipelineAbortsOnStageError(t *testing.T) {
	boom := errors.New("transport failure")
	mock := &mockGenerator{
		responses: stageResponses,
		errs:      map[int]error{2: boom},
	}
	var sleeps []time.Duration

	res, err := newTestPipeline(mock, &sleeps).Run(context.Background(), testDoc(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if res != nil {
		t.Error("Run() returned a partial bundle on abort")
	}
	if len(mock.requests) != 3 {
		t.Errorf("generate calls = %d, want 3 (no stages after the failure)", len(mock.requests))
	}
}
