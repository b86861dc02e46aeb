package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fabfab/docchat/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Retrieval.K != 4 {
		t.Fatalf("unexpected retrieval default: %+v", cfg.Retrieval)
	}
	if cfg.Store.Type != config.StoreMemory {
		t.Fatalf("unexpected store default: %+v", cfg.Store)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunking:\n  size: 500\n  overlap: 50\nretrieval:\n  k: 8\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunking.Size != 500 || cfg.Chunking.Overlap != 50 {
		t.Fatalf("file values not applied: %+v", cfg.Chunking)
	}
	if cfg.Retrieval.K != 8 {
		t.Fatalf("file values not applied: %+v", cfg.Retrieval)
	}
	if cfg.LLM.Provider != config.ProviderOllama {
		t.Fatalf("defaults lost for untouched sections: %+v", cfg.LLM)
	}
}

func TestValidateRejectsOverlapNotSmallerThanSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chunking:\n  size: 100\n  overlap: 100\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for overlap >= size")
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "llm:\n  provider: watson\n  model: m\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
}

func TestValidateRequiresDSNForPostgresStore(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Store = config.StoreConfig{Type: config.StorePostgres}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing postgres DSN")
	}
}
