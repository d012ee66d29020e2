package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"scholarmate/internal/document"
	"scholarmate/internal/store"
)

// progressEvent is one NDJSON line on the analyze stream.
type progressEvent struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// handleAnalyze accepts a multipart PDF upload, runs the pipeline, and
// streams progress as application/x-ndjson. The terminal line carries
// either the stored analysis or an error; no partial results are sent.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	doc, err := document.FromBytes(data, header.Filename, s.cfg.Pipeline.MaxContextChars)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	emit := func(ev progressEvent) {
		_ = enc.Encode(ev)
		flusher.Flush()
	}

	emit(progressEvent{Status: "processing", Message: "Initializing analysis..."})

	res, model, err := s.analyzer.Analyze(r.Context(), doc, func(message string) {
		emit(progressEvent{Status: "processing", Message: message})
	})
	if err != nil {
		// The client sees one generic failure; quota exhaustion and other
		// transport errors are only distinguished in the server log.
		s.logger.Error("analysis failed", zap.String("filename", doc.Filename), zap.Error(err))
		emit(progressEvent{Status: "error", Message: "Analysis failed. Retry later or check your API credentials."})
		return
	}

	analysis, err := s.store.SaveAnalysis(doc.Filename, model, doc.Pages, res)
	if err != nil {
		s.logger.Error("failed to persist analysis", zap.Error(err))
		emit(progressEvent{Status: "error", Message: "Analysis completed but could not be saved."})
		return
	}

	emit(progressEvent{Status: "complete", Data: analysis})
}

// handleAnalyses serves the collection: GET /api/analyses.
func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	analyses, err := s.store.ListAnalyses()
	if err != nil {
		s.logger.Error("failed to list analyses", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if analyses == nil {
		analyses = []store.AnalysisSummary{} // never a JSON null
	}
	s.writeJSON(w, http.StatusOK, analyses)
}

// handleAnalysisItem serves one analysis and its sub-resources:
//
//	GET    /api/analyses/{id}
//	DELETE /api/analyses/{id}
//	GET    /api/analyses/{id}/code
//	GET    /api/analyses/{id}/executions
//	POST   /api/analyses/{id}/run
func (s *Server) handleAnalysisItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/analyses/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		s.writeError(w, http.StatusNotFound, "analysis id required")
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.getAnalysis(w, id)
	case sub == "" && r.Method == http.MethodDelete:
		s.deleteAnalysis(w, id)
	case sub == "code" && r.Method == http.MethodGet:
		s.downloadCode(w, id)
	case sub == "executions" && r.Method == http.MethodGet:
		s.listExecutions(w, id)
	case sub == "run" && r.Method == http.MethodPost:
		s.runCode(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) getAnalysis(w http.ResponseWriter, id string) {
	analysis, err := s.store.GetAnalysis(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) deleteAnalysis(w http.ResponseWriter, id string) {
	if err := s.store.DeleteAnalysis(id); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) downloadCode(w http.ResponseWriter, id string) {
	analysis, err := s.store.GetAnalysis(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/x-python")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "experiment.py"))
	_, _ = w.Write([]byte(analysis.Result.Code))
}

func (s *Server) listExecutions(w http.ResponseWriter, id string) {
	execs, err := s.store.ListExecutions(id)
	if err != nil {
		s.logger.Error("failed to list executions", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	s.writeJSON(w, http.StatusOK, execs)
}

func (s *Server) runCode(w http.ResponseWriter, r *http.Request, id string) {
	analysis, err := s.store.GetAnalysis(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	result, err := s.runner.Run(r.Context(), analysis.Result.Code)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exec, err := s.store.SaveExecution(id, result)
	if err != nil {
		s.logger.Error("failed to persist execution", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to save execution")
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
