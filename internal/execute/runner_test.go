package execute

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"scholarmate/internal/config"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	return NewRunner(config.DefaultConfig(), zap.NewNop())
}

func requirePython(t *testing.T, r *Runner) {
	t.Helper()
	if _, err := exec.LookPath(r.interpreter); err != nil {
		t.Skipf("interpreter %q not installed", r.interpreter)
	}
}

func TestCheckImports(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"no imports", "print('hello')", false},
		{"stdlib only", "import json\nimport math\nfrom collections import Counter", false},
		{"allow-listed", "import numpy as np\nimport pandas as pd", false},
		{"allow-listed submodule", "from matplotlib import pyplot as plt", false},
		{"rejected module", "import requests", true},
		{"rejected among allowed", "import numpy\nimport socket", true},
		{"indented import", "def f():\n    import subprocess", true},
	}

	r := testRunner(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.CheckImports(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckImports() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckImportsNamesOffenders(t *testing.T) {
	err := testRunner(t).CheckImports("import requests\nimport socket")
	if err == nil {
		t.Fatal("CheckImports() accepted disallowed modules")
	}
	for _, mod := range []string{"requests", "socket"} {
		if !strings.Contains(err.Error(), mod) {
			t.Errorf("error %q does not name %q", err, mod)
		}
	}
}

func TestWithHeadlessPlotting(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		wantInjected bool
	}{
		{"no matplotlib", "print(1)", false},
		{"matplotlib import", "import matplotlib.pyplot as plt\nplt.plot([1])", true},
		{"backend already set", "import matplotlib\nmatplotlib.use('Agg')\nprint(1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withHeadlessPlotting(tt.code)
			if !tt.wantInjected {
				if got != tt.code {
					t.Errorf("code altered without injection:\n%s", got)
				}
				return
			}
			want := "import matplotlib\nmatplotlib.use('Agg')\n" + tt.code
			if got != want {
				t.Errorf("withHeadlessPlotting() = %q, want %q", got, want)
			}
		})
	}
}

func TestFormatOutput(t *testing.T) {
	tests := []struct {
		name     string
		out, err []string
		want     string
	}{
		{"silent", nil, nil, "Script executed successfully but produced no output."},
		{"stdout only", []string{"a", "b"}, nil, "[STDOUT]\na\nb\n"},
		{"stderr only", nil, []string{"warn"}, "[STDERR]\nwarn\n"},
		{"both", []string{"a"}, []string{"warn"}, "[STDOUT]\na\n\n[STDERR]\nwarn\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatOutput(tt.out, tt.err); got != tt.want {
				t.Errorf("formatOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunRejectsEmptyScript(t *testing.T) {
	if _, err := testRunner(t).Run(context.Background(), "   \n"); err == nil {
		t.Error("Run() accepted an empty script")
	}
}

func TestRunRejectsDisallowedImports(t *testing.T) {
	if _, err := testRunner(t).Run(context.Background(), "import requests"); err == nil {
		t.Error("Run() executed a script with disallowed imports")
	}
}

func TestRunCapturesOutput(t *testing.T) {
	r := testRunner(t)
	requirePython(t, r)

	res, err := r.Run(context.Background(), "import sys\nprint('out-line')\nprint('err-line', file=sys.stderr)")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success {
		t.Errorf("Success = false, output:\n%s", res.Output)
	}
	if !strings.Contains(res.Output, "[STDOUT]\nout-line") {
		t.Errorf("output missing stdout section:\n%s", res.Output)
	}
	if !strings.Contains(res.Output, "[STDERR]\nerr-line") {
		t.Errorf("output missing stderr section:\n%s", res.Output)
	}
}

func TestRunReportsNonzeroExit(t *testing.T) {
	r := testRunner(t)
	requirePython(t, r)

	res, err := r.Run(context.Background(), "import sys\nsys.exit(3)")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Success {
		t.Error("Success = true for a failing script")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRunTimesOut(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Execute.Timeout = "500ms"
	r := NewRunner(cfg, zap.NewNop())
	requirePython(t, r)

	start := time.Now()
	res, err := r.Run(context.Background(), "import time\ntime.sleep(30)")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false")
	}
	if res.Success {
		t.Error("Success = true for a timed-out script")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %v, far beyond the 500ms limit", elapsed)
	}
}

func TestRunIsolatesWorkDirRuns(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Execute.WorkDir = t.TempDir()
	r := NewRunner(cfg, zap.NewNop())
	requirePython(t, r)

	for i := 0; i < 2; i++ {
		if _, err := r.Run(context.Background(), "print('isolated')"); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	scripts, err := filepath.Glob(filepath.Join(cfg.Execute.WorkDir, "run-*", "experiment.py"))
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 2 {
		t.Errorf("scripts under work dir = %d, want one per run: %v", len(scripts), scripts)
	}
}

func TestEnsureInterpreterMemoizesFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Execute.Interpreter = "definitely-not-a-python-binary"
	r := NewRunner(cfg, zap.NewNop())

	_, err1 := r.ensureInterpreter()
	_, err2 := r.ensureInterpreter()
	if err1 == nil || err2 == nil {
		t.Fatal("ensureInterpreter() found a nonexistent interpreter")
	}
	if err1.Error() != err2.Error() {
		t.Errorf("memoized probe returned different errors: %q vs %q", err1, err2)
	}
}
