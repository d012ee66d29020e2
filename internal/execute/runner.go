// Package execute runs generated experiment scripts in a constrained
// subprocess: allow-listed imports, a hard timeout, and line-by-line
// capture of stdout/stderr into an accumulating log.
package execute

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"scholarmate/internal/config"
)

// Result reports one execution of a generated script.
type Result struct {
	Success  bool          `json:"success"`
	ExitCode int           `json:"exit_code"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Runner executes generated Python scripts. The interpreter probe runs
// once and is memoized; the handle is reused by later runs and never torn
// down.
type Runner struct {
	interpreter string
	timeout     time.Duration
	allowed     map[string]bool
	workDir     string
	logger      *zap.Logger

	probe       singleflight.Group
	mu          sync.Mutex
	interpPath  string
	interpError error
	probed      bool
}

// NewRunner creates a runner from configuration.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[string]bool, len(cfg.Execute.AllowedImports))
	for _, name := range cfg.Execute.AllowedImports {
		allowed[name] = true
	}

	return &Runner{
		interpreter: cfg.Execute.Interpreter,
		timeout:     cfg.GetExecuteTimeout(),
		allowed:     allowed,
		workDir:     cfg.Execute.WorkDir,
		logger:      logger,
	}
}

// Run checks the script against the import allow-list, writes it to a
// scratch directory, and executes it under the configured timeout.
// Execution failure (nonzero exit, timeout) is reported in the Result;
// the error return is reserved for setup problems.
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("no code to execute")
	}
	if err := r.CheckImports(code); err != nil {
		return nil, err
	}

	interp, err := r.ensureInterpreter()
	if err != nil {
		return nil, err
	}

	dir := r.workDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "scholarmate-run-")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	} else {
		// Each run gets its own subdirectory so concurrent runs never
		// overwrite each other's script. Artifacts are kept for inspection.
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		run, err := os.MkdirTemp(dir, "run-")
		if err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
		dir = run
	}

	scriptPath := filepath.Join(dir, "experiment.py")
	if err := os.WriteFile(scriptPath, []byte(withHeadlessPlotting(code)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write script: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, interp, scriptPath)
	cmd.Dir = dir
	cmd.Env = []string{"PATH=" + os.Getenv("PATH"), "HOME=" + os.Getenv("HOME"), "MPLBACKEND=Agg"}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start interpreter: %w", err)
	}

	var outLines, errLines []string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); outLines = captureLines(stdout) }()
	go func() { defer wg.Done(); errLines = captureLines(stderr) }()
	wg.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	result := &Result{
		Duration: duration,
		Output:   formatOutput(outLines, errLines),
	}

	if execCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		result.Output = fmt.Sprintf("Error: execution timed out after %s.", r.timeout)
		r.logger.Warn("script execution timed out", zap.Duration("timeout", r.timeout))
		return result, nil
	}

	if waitErr != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
		r.logger.Warn("script exited with failure",
			zap.Int("exit_code", result.ExitCode), zap.Duration("duration", duration))
		return result, nil
	}

	result.Success = true
	return result, nil
}

// ensureInterpreter resolves and probes the configured interpreter once.
// Later runs reuse the memoized handle.
func (r *Runner) ensureInterpreter() (string, error) {
	r.mu.Lock()
	if r.probed {
		path, err := r.interpPath, r.interpError
		r.mu.Unlock()
		return path, err
	}
	r.mu.Unlock()

	path, err, _ := r.probe.Do("interpreter", func() (interface{}, error) {
		resolved, err := exec.LookPath(r.interpreter)
		if err != nil {
			return "", fmt.Errorf("interpreter %q not found: %w", r.interpreter, err)
		}
		if err := exec.Command(resolved, "--version").Run(); err != nil {
			return "", fmt.Errorf("interpreter %q is not runnable: %w", resolved, err)
		}
		r.logger.Info("interpreter provisioned", zap.String("path", resolved))
		return resolved, nil
	})

	r.mu.Lock()
	r.interpPath, _ = path.(string)
	r.interpError = err
	r.probed = true
	r.mu.Unlock()

	return r.interpPath, err
}

func captureLines(pipe io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func formatOutput(outLines, errLines []string) string {
	var b strings.Builder
	if len(outLines) > 0 {
		b.WriteString("[STDOUT]\n")
		b.WriteString(strings.Join(outLines, "\n"))
		b.WriteString("\n")
	}
	if len(errLines) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[STDERR]\n")
		b.WriteString(strings.Join(errLines, "\n"))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "Script executed successfully but produced no output."
	}
	return b.String()
}

// withHeadlessPlotting forces a non-interactive matplotlib backend so
// generated scripts cannot hang on a display.
func withHeadlessPlotting(code string) string {
	if !strings.Contains(code, "matplotlib") || strings.Contains(code, "matplotlib.use(") {
		return code
	}
	return "import matplotlib\nmatplotlib.use('Agg')\n" + code
}
