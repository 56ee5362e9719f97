// Package embeddingtest provides a deterministic in-process Embedder for tests.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// Dim is the vector size produced by Fake.
const Dim = 256

// Fake embeds text as a hashed bag of lower-cased words, so texts sharing words are close.
type Fake struct {
	ModelName string // defaults to "fake-embed"
	Err       error  // returned by every call when set

	mu      sync.Mutex
	queries int
	docs    int
}

// Model implements embedding.Embedder.
func (f *Fake) Model() string {
	if f.ModelName == "" {
		return "fake-embed"
	}
	return f.ModelName
}

// EmbedDocuments implements embedding.Embedder.
func (f *Fake) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.docs += len(texts)
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

// EmbedQuery implements embedding.Embedder.
func (f *Fake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.queries++
	f.mu.Unlock()
	return Vector(text), nil
}

// Queries reports how many EmbedQuery calls succeeded.
func (f *Fake) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// Documents reports how many texts EmbedDocuments has embedded.
func (f *Fake) Documents() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs
}

func (f *Fake) check(ctx context.Context) error {
	if f.Err != nil {
		return f.Err
	}
	return ctx.Err()
}

// Vector is the embedding Fake assigns to text.
func Vector(text string) []float32 {
	v := make([]float32, Dim)
	v[0] = 0.01 // never the zero vector
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[1+int(h.Sum32()%(Dim-1))]++
	}
	return v
}
