package main

import (
	"path/filepath"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"analyze", "serve", "history", "show", "run", "export"}

	registered := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestLoadConfigAppliesAPIKeyFlag(t *testing.T) {
	origPath, origKey := cfgPath, apiKey
	defer func() { cfgPath, apiKey = origPath, origKey }()

	cfgPath = filepath.Join(t.TempDir(), "absent.yaml")
	apiKey = "flag-key"
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Gemini.APIKey != "flag-key" {
		t.Errorf("APIKey = %q, want the flag to win", cfg.Gemini.APIKey)
	}
}
