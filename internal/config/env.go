package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{env: "LAPIQ_DATA_DIR", typ: kString, apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) }},
	{env: "LAPIQ_INDEX_PATH", typ: kString, apply: func(cfg *Config, v any) { cfg.Storage.IndexPath = v.(string) }},
	{env: "LAPIQ_CHUNK_SOURCE", typ: kString, apply: func(cfg *Config, v any) { cfg.Storage.ChunkSource = v.(string) }},
	{env: "LAPIQ_EMBEDDER_TYPE", typ: kString, apply: func(cfg *Config, v any) { cfg.Embedder.Type = v.(string) }},
	{env: "LAPIQ_EMBEDDER_MODEL", typ: kString, apply: func(cfg *Config, v any) { cfg.Embedder.Model = v.(string) }},
	{env: "LAPIQ_EMBEDDER_DIMENSION", typ: kInt, apply: func(cfg *Config, v any) { cfg.Embedder.Dimension = v.(int) }},
	{env: "LAPIQ_EMBEDDER_BASE_URL", typ: kString, apply: func(cfg *Config, v any) { cfg.Embedder.BaseURL = v.(string) }},
	{env: "LAPIQ_API_KEY_ENV", typ: kString, apply: func(cfg *Config, v any) { cfg.Embedder.APIKeyEnv = v.(string) }},
	{env: "LAPIQ_GENERATOR_TYPE", typ: kString, apply: func(cfg *Config, v any) { cfg.Generator.Type = v.(string) }},
	{env: "LAPIQ_GENERATOR_MODEL", typ: kString, apply: func(cfg *Config, v any) { cfg.Generator.Model = v.(string) }},
	{env: "LAPIQ_RETRIEVAL_TOP_K", typ: kInt, apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) }},
	{env: "LAPIQ_MAX_CONTEXT_TOKENS", typ: kInt, apply: func(cfg *Config, v any) { cfg.Retrieval.MaxContextTokens = v.(int) }},
	{env: "LAPIQ_LOG_LEVEL", typ: kString, apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) }},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
