// Package embedding turns text into vectors through an external embedding provider.
package embedding

import (
	"context"
	"fmt"

	"github.com/bull/socratic-qa/internal/config"
)

// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
const DefaultBatchSize = 500

// Embedder generates vectors for documents and queries. Both methods must use the
// same model so that query vectors are comparable with indexed ones.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding model; the index records it at build time.
	Model() string
}

// New builds the embedder selected by cfg. apiKey is only used by the openai provider.
func New(cfg config.EmbeddingConfig, apiKey string) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		}), nil
	case config.ProviderOllama:
		o, err := NewOllama(cfg.BaseURL, cfg.Model, cfg.BatchSize, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
