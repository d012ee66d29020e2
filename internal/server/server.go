// Package server exposes the analysis pipeline and stored results over
// HTTP. The analyze endpoint streams newline-delimited JSON progress
// events while the pipeline runs; everything else is plain JSON.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scholarmate/internal/config"
	"scholarmate/internal/document"
	"scholarmate/internal/execute"
	"scholarmate/internal/pipeline"
	"scholarmate/internal/store"
)

// Analyzer runs the full analysis for one document.
type Analyzer interface {
	Analyze(ctx context.Context, doc *document.Document, progress pipeline.Progress) (*pipeline.Result, string, error)
}

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	runner   *execute.Runner
	analyzer Analyzer

	listener net.Listener
	server   *http.Server
}

// New creates the API server.
func New(cfg *config.Config, st *store.Store, runner *execute.Runner, analyzer Analyzer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		runner:   runner,
		analyzer: analyzer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/analyses", s.handleAnalyses)
	mux.HandleFunc("/api/analyses/", s.handleAnalysisItem)
	mux.HandleFunc("/api/health", s.handleHealth)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: the analyze stream stays open for the whole
		// pipeline run, which is minutes with inter-stage delays.
	}

	return s
}

// Start begins serving on the configured bind address. The server shuts
// down when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", zap.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    s.cfg.Name,
		"version": s.cfg.Version,
	})
}
