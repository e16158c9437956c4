package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedder.Type != "ollama" || cfg.Embedder.Model != "nomic-embed-text" {
		t.Errorf("embedder defaults = %+v", cfg.Embedder)
	}
	if cfg.Retrieval.TopK != 10 || cfg.Retrieval.MaxContextTokens != 4000 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
embedder:
  type: openai
  model: text-embedding-3-small
  dimension: 1536
retrieval:
  top_k: 25
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedder.Type != "openai" || cfg.Embedder.Dimension != 1536 {
		t.Errorf("embedder = %+v", cfg.Embedder)
	}
	if cfg.Retrieval.TopK != 25 {
		t.Errorf("TopK = %d, want 25", cfg.Retrieval.TopK)
	}
	// Untouched fields keep their defaults.
	if cfg.Retrieval.MaxContextTokens != 4000 {
		t.Errorf("MaxContextTokens = %d, want default 4000", cfg.Retrieval.MaxContextTokens)
	}
	if cfg.Generator.Model != "mistral-nemo" {
		t.Errorf("Generator.Model = %q, want default", cfg.Generator.Model)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  top_k: 25
`)
	t.Setenv("LAPIQ_RETRIEVAL_TOP_K", "3")
	t.Setenv("LAPIQ_EMBEDDER_MODEL", "all-minilm")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want env override 3", cfg.Retrieval.TopK)
	}
	if cfg.Embedder.Model != "all-minilm" {
		t.Errorf("Embedder.Model = %q, want env override", cfg.Embedder.Model)
	}
}

func TestLoad_BadEnvIntIgnored(t *testing.T) {
	t.Setenv("LAPIQ_RETRIEVAL_TOP_K", "not-a-number")
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("TopK = %d, want default 10 when env is unparseable", cfg.Retrieval.TopK)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "embedder: [not: valid")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("TEST_LAPIQ_KEY", "sk-test")
	cfg := defaults()
	cfg.Embedder.APIKeyEnv = "TEST_LAPIQ_KEY"
	if got := cfg.APIKey(); got != "sk-test" {
		t.Errorf("APIKey() = %q", got)
	}
	cfg.Embedder.APIKeyEnv = ""
	if got := cfg.APIKey(); got != "" {
		t.Errorf("APIKey() with no env name = %q, want empty", got)
	}
}
