// Package config loads and validates the application configuration from
// an optional YAML file plus environment overrides for credentials and
// host endpoints.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	K int `yaml:"k"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type StoreConfig struct {
	Type        string `yaml:"type"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type Config struct {
	Chunking   ChunkingConfig  `yaml:"chunking"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	LLM        LLMConfig       `yaml:"llm"`
	Embeddings EmbeddingConfig `yaml:"embeddings"`
	Store      StoreConfig     `yaml:"store"`

	// IndexDir is where vector index snapshots are persisted.
	IndexDir string `yaml:"index_dir"`
	// DataDir is the default directory scanned for PDF documents.
	DataDir string `yaml:"data_dir"`

	OllamaHost    string `yaml:"ollama_host"`
	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// Load reads the YAML config at path when it exists, fills in defaults,
// applies environment overrides, and validates the result. A missing
// file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Chunking:  ChunkingConfig{Size: 1000, Overlap: 200},
		Retrieval: RetrievalConfig{K: 4},
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			Model:       "llama3.1:8b",
			Temperature: 0.3,
		},
		Embeddings: EmbeddingConfig{
			Provider:  ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 768,
		},
		Store:      StoreConfig{Type: StoreMemory},
		IndexDir:   ".docchat/index",
		DataDir:    "./docs",
		OllamaHost: "http://localhost:11434",
	}
}

func (c *Config) applyEnv() {
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.Store.PostgresDSN = getEnv("POSTGRES_DSN", c.Store.PostgresDSN)
}

// Validate rejects configurations that cannot produce a working
// pipeline. Errors here are fatal at startup; nothing retries them.
func (c Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap %d must be smaller than chunking.size %d", c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings.dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embeddings.Provider)
	}
	switch c.Store.Type {
	case StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.type is postgres but no DSN configured (set POSTGRES_DSN)")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
