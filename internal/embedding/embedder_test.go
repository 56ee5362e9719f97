package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/socratic-qa/internal/config"
	"github.com/bull/socratic-qa/internal/provider"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeOpenAI answers /embeddings with a 2-d vector per input: {len(text), index}.
// Items are returned in reverse order to check that the index field is honored.
func fakeOpenAI(t *testing.T, rateLimited int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= rateLimited {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(req.Input[i])), float64(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAI_EmbedDocumentsBatchesInOrder(t *testing.T) {
	srv, calls := fakeOpenAI(t, 0)
	e := NewOpenAI(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "text-embedding-3-small", BatchSize: 2, Timeout: 5 * time.Second})

	vectors, err := e.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.Equal(t, int32(3), calls.Load(), "five texts in batches of two")

	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0], "vector %d out of order", i)
	}
	assert.Equal(t, "text-embedding-3-small", e.Model())
}

func TestOpenAI_EmbedQuery(t *testing.T) {
	srv, _ := fakeOpenAI(t, 0)
	e := NewOpenAI(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "m", Timeout: 5 * time.Second})

	v, err := e.EmbedQuery(context.Background(), "What is virtue?")
	require.NoError(t, err)
	assert.Equal(t, []float32{15, 0}, v)
}

func TestOpenAI_RetriesRateLimit(t *testing.T) {
	srv, calls := fakeOpenAI(t, 1)
	e := NewOpenAI(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "m", Timeout: 10 * time.Second})

	v, err := e.EmbedQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAI_PermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	e := NewOpenAI(OpenAIOptions{APIKey: "bad", BaseURL: srv.URL, Model: "m", Timeout: 5 * time.Second})
	_, err := e.EmbedQuery(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	e := NewOpenAI(OpenAIOptions{APIKey: "test", BaseURL: srv.URL, Model: "m", Timeout: 50 * time.Millisecond})
	_, err := e.EmbedQuery(context.Background(), "hi")
	assert.ErrorIs(t, err, provider.ErrTimeout)
}

func TestOllama_EmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.25]}`))
	}))
	defer srv.Close()

	e, err := NewOllama(srv.URL, "nomic-embed-text", 0, 5*time.Second)
	require.NoError(t, err)

	v, err := e.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, v)

	docs, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "nomic-embed-text", e.Model())
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := config.Default().Embedding

	e, err := New(cfg, "key")
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, e)

	cfg.Provider = config.ProviderOllama
	cfg.Model = "nomic-embed-text"
	e, err = New(cfg, "")
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, e)

	cfg.Provider = "cohere"
	_, err = New(cfg, "")
	assert.Error(t, err)
}
