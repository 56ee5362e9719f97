// Package config loads service configuration from YAML, .env and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "config.yaml"

// Provider names shared by the embedding and llm sections.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Index backends.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Chunking strategies.
const (
	StrategyWindow    = "window"
	StrategyRecursive = "recursive"
)

// Config is the root configuration.
type Config struct {
	SourceDir string          `yaml:"source_dir" validate:"required"`
	StaticDir string          `yaml:"static_dir" validate:"required"`
	Server    ServerConfig    `yaml:"server"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Log       LogConfig       `yaml:"log"`

	// OpenAIKey is read from OPENAI_API_KEY only; it is never written to YAML.
	OpenAIKey string `yaml:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"gt=0,lte=65535"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// ChunkingConfig controls how documents are split.
type ChunkingConfig struct {
	Strategy string `yaml:"strategy" validate:"oneof=window recursive"`
	Size     int    `yaml:"size" validate:"gt=0"`
	Overlap  int    `yaml:"overlap" validate:"gte=0,ltfield=Size"`
}

// RetrievalConfig controls the answerer.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"gt=0,lte=50"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend    string       `yaml:"backend" validate:"oneof=memory qdrant"`
	Collection string       `yaml:"collection" validate:"required"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds gRPC connection details for Qdrant.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider" validate:"oneof=openai ollama"`
	Model          string        `yaml:"model" validate:"required"`
	BaseURL        string        `yaml:"base_url"`
	BatchSize      int           `yaml:"batch_size" validate:"gte=0"`
	QueryCacheSize int           `yaml:"query_cache_size" validate:"gte=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LLMConfig selects the language-model provider.
type LLMConfig struct {
	Provider string        `yaml:"provider" validate:"oneof=openai ollama"`
	Model    string        `yaml:"model" validate:"required"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		SourceDir: "spiritual_database",
		StaticDir: "static",
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8000},
		Chunking:  ChunkingConfig{Strategy: StrategyWindow, Size: 1000, Overlap: 200},
		Retrieval: RetrievalConfig{TopK: 4},
		Index: IndexConfig{
			Backend:    BackendMemory,
			Collection: "documents",
			Qdrant:     QdrantConfig{Host: "localhost", Port: 6334},
		},
		Embedding: EmbeddingConfig{
			Provider:       ProviderOpenAI,
			Model:          "text-embedding-3-small",
			QueryCacheSize: 256,
			Timeout:        30 * time.Second,
		},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads .env (if present), the YAML file at path (missing file means defaults),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional; production sets real environment variables
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and provider credentials.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.usesOpenAI() && c.OpenAIKey == "" {
		return errors.New("invalid config: OPENAI_API_KEY environment variable not set")
	}
	return nil
}

func (c *Config) usesOpenAI() bool {
	return c.Embedding.Provider == ProviderOpenAI || c.LLM.Provider == ProviderOpenAI
}

func applyEnv(cfg *Config) {
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.SourceDir = getEnv("SOURCE_DIR", cfg.SourceDir)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Index.Backend = getEnv("INDEX_BACKEND", cfg.Index.Backend)
	cfg.Index.Qdrant.Host = getEnv("QDRANT_HOST", cfg.Index.Qdrant.Host)
	cfg.Index.Qdrant.Port = getEnvInt("QDRANT_PORT", cfg.Index.Qdrant.Port)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
