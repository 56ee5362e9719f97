package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/bull/socratic-qa/internal/provider"
)

// Ollama embeds through a local Ollama server using langchaingo.
type Ollama struct {
	embedder *embeddings.EmbedderImpl
	model    string
	timeout  time.Duration
}

// NewOllama connects to serverURL (empty means the langchaingo default, localhost:11434).
func NewOllama(serverURL, model string, batchSize int, timeout time.Duration) (*Ollama, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return &Ollama{embedder: embedder, model: model, timeout: timeout}, nil
}

// Model implements Embedder.
func (o *Ollama) Model() string { return o.model }

// EmbedDocuments implements Embedder.
func (o *Ollama) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return provider.Call(ctx, "embed_documents", o.timeout, func(ctx context.Context) ([][]float32, error) {
		return o.embedder.EmbedDocuments(ctx, texts)
	})
}

// EmbedQuery implements Embedder.
func (o *Ollama) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return provider.Call(ctx, "embed_query", o.timeout, func(ctx context.Context) ([]float32, error) {
		return o.embedder.EmbedQuery(ctx, text)
	})
}
