package pipeline

import (
	"context"

	"go.uber.org/zap"

	"scholarmate/internal/config"
	"scholarmate/internal/document"
	"scholarmate/internal/gemini"
)

// Service couples model preflight with a pipeline run. Both the CLI and
// the HTTP API analyze through it.
type Service struct {
	client *gemini.Client
	pipe   *Pipeline
}

// NewService creates the analysis service around a Gemini client.
func NewService(client *gemini.Client, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		pipe:   New(client, cfg, logger),
	}
}

// Analyze selects a usable model, runs the full pipeline, and returns the
// bundle along with the model that produced it.
func (s *Service) Analyze(ctx context.Context, doc *document.Document, progress Progress) (*Result, string, error) {
	if progress != nil {
		progress("Connecting to best available model...")
	}
	model, err := s.client.Preflight(ctx)
	if err != nil {
		return nil, "", err
	}

	res, err := s.pipe.Run(ctx, doc, progress)
	if err != nil {
		return nil, "", err
	}
	return res, model, nil
}
