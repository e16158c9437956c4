// Package config loads settings from an optional YAML file with LAPIQ_*
// environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	// Type is "ollama" or "openai".
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// GeneratorConfig selects and configures the answer model.
type GeneratorConfig struct {
	// Type is "ollama" or "openai".
	Type  string `yaml:"type"`
	Model string `yaml:"model"`
}

// RetrievalConfig tunes query-time retrieval and prompt assembly.
type RetrievalConfig struct {
	TopK             int `yaml:"top_k"`
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// StorageConfig locates the on-disk artifacts.
type StorageConfig struct {
	// DataDir holds the attribute database.
	DataDir string `yaml:"data_dir"`
	// IndexPath is where the vector index artifact lives.
	IndexPath string `yaml:"index_path"`
	// ChunkSource is the JSON catalog the index is built from.
	ChunkSource string `yaml:"chunk_source"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the root configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from the given path. A missing file is not an error;
// defaults apply. Environment variables override file values either way.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
		applyConfigDefaults(&cfg)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// APIKey resolves the embedder/generator API key from the configured
// environment variable. Empty when not set; the ollama backends don't need one.
func (c Config) APIKey() string {
	if c.Embedder.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedder.APIKeyEnv)
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Storage: StorageConfig{
			DataDir:     dataDir,
			IndexPath:   filepath.Join(dataDir, "index.gob"),
			ChunkSource: "chunks.json",
		},
		Embedder: EmbedderConfig{
			Type:      "ollama",
			Model:     "nomic-embed-text",
			Dimension: 768,
			BaseURL:   "http://localhost:11434",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Generator: GeneratorConfig{
			Type:  "ollama",
			Model: "mistral-nemo",
		},
		Retrieval: RetrievalConfig{
			TopK:             10,
			MaxContextTokens: 4000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// applyConfigDefaults backfills fields the YAML file left zero.
func applyConfigDefaults(cfg *Config) {
	d := defaults()
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = d.Storage.DataDir
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = filepath.Join(cfg.Storage.DataDir, "index.gob")
	}
	if cfg.Storage.ChunkSource == "" {
		cfg.Storage.ChunkSource = d.Storage.ChunkSource
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = d.Embedder.Type
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = d.Embedder.Model
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = d.Embedder.Dimension
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = d.Embedder.BaseURL
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = d.Embedder.APIKeyEnv
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = d.Generator.Type
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = d.Generator.Model
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = d.Retrieval.TopK
	}
	if cfg.Retrieval.MaxContextTokens == 0 {
		cfg.Retrieval.MaxContextTokens = d.Retrieval.MaxContextTokens
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lapiq"
	}
	return filepath.Join(home, ".local", "share", "lapiq")
}
