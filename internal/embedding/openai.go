package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/socratic-qa/internal/provider"
)

// OpenAIOptions configures an OpenAI embedder.
type OpenAIOptions struct {
	APIKey    string
	BaseURL   string // empty means api.openai.com
	Model     string
	BatchSize int           // 0 means DefaultBatchSize
	Timeout   time.Duration // per request, including retries
}

// OpenAI generates embeddings with the OpenAI embeddings API.
// It batches requests for efficiency and implements exponential backoff on rate limit errors.
type OpenAI struct {
	client    openai.Client
	model     string
	batchSize int
	timeout   time.Duration
}

// NewOpenAI creates an OpenAI embedder.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// rate limits are retried by embedBatchWithRetry
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &OpenAI{
		client:    openai.NewClient(reqOpts...),
		model:     opts.Model,
		batchSize: opts.BatchSize,
		timeout:   opts.Timeout,
	}
}

// Model implements Embedder.
func (e *OpenAI) Model() string { return e.model }

// EmbedDocuments generates one vector per text, in input order.
func (e *OpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var allEmbeddings [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := provider.Call(ctx, "embed_documents", e.timeout, func(ctx context.Context) ([][]float32, error) {
			return e.embedBatchWithRetry(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// EmbedQuery embeds a single question.
func (e *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return provider.Call(ctx, "embed_query", e.timeout, func(ctx context.Context) ([]float32, error) {
		vectors, err := e.embedBatchWithRetry(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vectors[0], nil
	})
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (e *OpenAI) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
		}

		data := resp.Data
		sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		embeddings = make([][]float32, len(data))
		for i, d := range data {
			embeddings[i] = toFloat32(d.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but the index stores float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
