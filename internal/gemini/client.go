// Package gemini wraps the Google GenAI SDK behind a typed request contract
// with model preflight and retry/backoff around rate limits.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"scholarmate/internal/config"
)

// Part is one piece of request content: either plain text or an inline
// binary payload with its MIME type.
type Part struct {
	Text string
	Data []byte
	MIME string
}

// TextPart returns a text content part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart returns an inline binary content part.
func BlobPart(data []byte, mime string) Part {
	return Part{Data: data, MIME: mime}
}

// GenerateRequest describes one generation call. Fields are explicit so a
// malformed stage wiring fails at compile time rather than inside the SDK.
type GenerateRequest struct {
	// System is the optional system instruction.
	System string

	// Parts is the ordered request content.
	Parts []Part

	// JSON requests a structured JSON response. Schema may additionally
	// constrain its shape; nil means free-form JSON.
	JSON   bool
	Schema *genai.Schema
}

// Generator is the remote generation call. The pipeline depends on this
// interface so tests can substitute call-inspection mocks.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Client is a Gemini-backed Generator. The active model is selected by
// Preflight from the configured candidate list.
type Client struct {
	genai  *genai.Client
	cfg    config.GeminiConfig
	retry  RetryPolicy
	logger *zap.Logger

	mu    sync.Mutex
	model string
}

// NewClient creates a Gemini client from configuration. The API key and
// candidate model list must be set; Preflight picks the active model.
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	retry := DefaultRetryPolicy()
	if cfg.Gemini.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Gemini.MaxAttempts
	}
	if d := cfg.GetInitialDelay(); d > 0 {
		retry.InitialDelay = d
	}
	if cfg.Gemini.Multiplier > 1 {
		retry.Multiplier = cfg.Gemini.Multiplier
	}

	return &Client{
		genai:  gc,
		cfg:    cfg.Gemini,
		retry:  retry,
		logger: logger,
	}, nil
}

// Preflight walks the candidate model list and selects the first model that
// answers a trivial probe request. Models that fail the probe (quota, not
// found, anything else) are skipped. Returns the selected model name.
func (c *Client) Preflight(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != "" {
		return c.model, nil
	}

	for _, model := range c.cfg.Models {
		_, err := c.genai.Models.GenerateContent(ctx,
			model,
			[]*genai.Content{genai.NewContentFromText("Test", genai.RoleUser)},
			&genai.GenerateContentConfig{MaxOutputTokens: 5},
		)
		if err != nil {
			c.logger.Info("skipping model", zap.String("model", model), zap.Error(err))
			continue
		}
		c.logger.Info("model selected", zap.String("model", model))
		c.model = model
		return model, nil
	}

	return "", fmt.Errorf("%w: check your API key and quota", ErrNoUsableModel)
}

// ActiveModel returns the model chosen by Preflight, or "" before it ran.
func (c *Client) ActiveModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Generate issues one generation call wrapped in the retry policy and
// returns the response text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model, err := c.Preflight(ctx)
	if err != nil {
		return "", err
	}

	contents, genCfg := c.buildCall(req)

	return c.retry.Do(ctx, c.logger, "generate", func(ctx context.Context) (string, error) {
		resp, err := c.genai.Models.GenerateContent(ctx, model, contents, genCfg)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return resp.Text(), nil
	})
}

func (c *Client) buildCall(req GenerateRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Data != nil {
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIME))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genCfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = req.Schema
	}

	return contents, genCfg
}

// Close releases client resources. The SDK client itself holds nothing
// closable; the method exists so callers shut down the client and the
// store uniformly.
func (c *Client) Close() error {
	return nil
}
