// Package store persists completed analyses and their execution runs in
// SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"scholarmate/internal/execute"
	"scholarmate/internal/pipeline"
)

// Analysis is one stored pipeline run: the full result bundle plus
// metadata about the input document and the model that produced it.
type Analysis struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Model     string          `json:"model"`
	Pages     int             `json:"pages"`
	Result    pipeline.Result `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

// AnalysisSummary is one listing row: document and model metadata plus
// the validation text for status display. Result bodies are only loaded
// through GetAnalysis.
type AnalysisSummary struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Model      string    `json:"model"`
	Pages      int       `json:"pages"`
	Validation string    `json:"validation_report"`
	CreatedAt  time.Time `json:"created_at"`
}

// Execution is one stored run of an analysis's generated code.
type Execution struct {
	ID         int64     `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Success    bool      `json:"success"`
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output"`
	Duration   int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a SQLite-backed analysis store. A single connection with WAL
// journaling serves all callers.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
}

// New opens (or creates) the database at the given path.
func New(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logger.Debug("failed to enable sqlite foreign_keys", zap.Error(err))
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		model TEXT NOT NULL,
		pages INTEGER NOT NULL DEFAULT 0,
		summary TEXT NOT NULL,
		critique TEXT NOT NULL,
		experiment_plan TEXT NOT NULL,
		code TEXT NOT NULL,
		slides TEXT NOT NULL,
		interpretation TEXT NOT NULL,
		validation TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		success INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		output TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_executions_analysis ON executions(analysis_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveAnalysis stores a completed result bundle and returns its id.
func (s *Store) SaveAnalysis(filename, model string, pages int, res *pipeline.Result) (*Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slides, err := json.Marshal(res.Slides)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal slides: %w", err)
	}

	a := &Analysis{
		ID:        uuid.NewString(),
		Filename:  filename,
		Model:     model,
		Pages:     pages,
		Result:    *res,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.Exec(`
		INSERT INTO analyses
			(id, filename, model, pages, summary, critique, experiment_plan,
			 code, slides, interpretation, validation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Filename, a.Model, a.Pages,
		res.Summary, res.Critique, res.ExperimentPlan,
		res.Code, string(slides), res.Interpretation, res.Validation,
		a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	s.logger.Info("analysis saved", zap.String("id", a.ID), zap.String("filename", filename))
	return a, nil
}

// GetAnalysis loads one analysis by id.
func (s *Store) GetAnalysis(id string) (*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, filename, model, pages, summary, critique, experiment_plan,
		       code, slides, interpretation, validation, created_at
		FROM analyses WHERE id = ?`, id)

	var a Analysis
	var slides string
	err := row.Scan(&a.ID, &a.Filename, &a.Model, &a.Pages,
		&a.Result.Summary, &a.Result.Critique, &a.Result.ExperimentPlan,
		&a.Result.Code, &slides, &a.Result.Interpretation, &a.Result.Validation,
		&a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	if err := json.Unmarshal([]byte(slides), &a.Result.Slides); err != nil {
		return nil, fmt.Errorf("failed to decode slides: %w", err)
	}

	return &a, nil
}

// ListAnalyses returns summaries of all analyses, newest first.
func (s *Store) ListAnalyses() ([]AnalysisSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, filename, model, pages, validation, created_at
		FROM analyses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisSummary
	for rows.Next() {
		var a AnalysisSummary
		if err := rows.Scan(&a.ID, &a.Filename, &a.Model, &a.Pages,
			&a.Validation, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAnalysis removes an analysis and its executions.
func (s *Store) DeleteAnalysis(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("analysis %s not found", id)
	}
	return nil
}

// SaveExecution records one run of an analysis's generated code.
func (s *Store) SaveExecution(analysisID string, res *execute.Result) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &Execution{
		AnalysisID: analysisID,
		Success:    res.Success,
		ExitCode:   res.ExitCode,
		Output:     res.Output,
		Duration:   res.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	result, err := s.db.Exec(`
		INSERT INTO executions (analysis_id, success, exit_code, output, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.AnalysisID, boolToInt(e.Success), e.ExitCode, e.Output, e.Duration, e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	e.ID, _ = result.LastInsertId()
	return e, nil
}

// ListExecutions returns all executions of one analysis, newest first.
func (s *Store) ListExecutions(analysisID string) ([]Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, analysis_id, success, exit_code, output, duration_ms, created_at
		FROM executions WHERE analysis_id = ? ORDER BY created_at DESC`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		var success int
		if err := rows.Scan(&e.ID, &e.AnalysisID, &success, &e.ExitCode,
			&e.Output, &e.Duration, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Success = success != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
