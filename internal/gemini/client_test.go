package gemini

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"scholarmate/internal/config"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	// DefaultConfig carries no key; the constructor must refuse before
	// touching the network.
	_, err := NewClient(context.Background(), config.DefaultConfig(), zap.NewNop())
	if err == nil {
		t.Error("NewClient() accepted an empty API key")
	}
}

func TestCloseIsSafeOnZeroClient(t *testing.T) {
	var c Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
