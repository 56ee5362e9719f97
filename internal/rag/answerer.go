// Package rag answers questions from the indexed corpus: retrieve the nearest chunks,
// render them into the Socratic prompt and ask the language model once.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/bull/socratic-qa/internal/chunker"
	"github.com/bull/socratic-qa/internal/embedding"
	"github.com/bull/socratic-qa/internal/llm"
	"github.com/bull/socratic-qa/internal/storage"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

var (
	ErrEmptyIndex             = errors.New("index is empty: no documents have been indexed")
	ErrEmptyQuestion          = errors.New("question must not be empty")
	ErrEmbeddingModelMismatch = errors.New("query embedding model differs from index embedding model")
)

const socraticTemplate = `You are a Socratic dialogue agent. Your purpose is not just to answer questions, but to stimulate deeper philosophical thought.

Based on the following context from ancient philosophical texts, first, provide a concise and direct answer to the user's question.
Then, you MUST end your response by asking a thought-provoking, open-ended question that is related to the user's original query, guiding them to explore the topic more deeply.

CONTEXT:
{{.context}}

USER'S QUESTION:
{{.question}}

SOCRATIC RESPONSE (Answer, followed by a question):`

// Answer is the model output plus the chunks it was grounded on, most similar first.
type Answer struct {
	Text    string
	Sources []chunker.Chunk
}

// Answerer is stateless apart from the shared read-only index and safe for concurrent use.
type Answerer struct {
	index     storage.Index
	embedder  embedding.Embedder
	completer llm.Completer
	prompt    prompts.PromptTemplate
	topK      int
	logger    *slog.Logger
}

// New wires an Answerer. The embedder must be the one the index was built with.
func New(index storage.Index, embedder embedding.Embedder, completer llm.Completer, topK int, logger *slog.Logger) (*Answerer, error) {
	if index.EmbeddingModel() != embedder.Model() {
		return nil, fmt.Errorf("%w: index %q, query %q", ErrEmbeddingModelMismatch, index.EmbeddingModel(), embedder.Model())
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		index:     index,
		embedder:  embedder,
		completer: completer,
		prompt:    prompts.NewPromptTemplate(socraticTemplate, []string{"context", "question"}),
		topK:      topK,
		logger:    logger,
	}, nil
}

// TopK returns the configured number of retrieved chunks.
func (a *Answerer) TopK() int { return a.topK }

// Ask runs the full pipeline for one question and returns the raw model output.
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	a.logger.Info("Received question", "question", question)

	matches, err := a.Retrieve(ctx, question, a.topK)
	if err != nil {
		return nil, err
	}

	sources := make([]chunker.Chunk, len(matches))
	texts := make([]string, len(matches))
	for i, m := range matches {
		sources[i] = m.Chunk
		texts[i] = m.Chunk.Text
	}

	rendered, err := a.prompt.Format(map[string]any{
		"context":  strings.Join(texts, "\n\n"),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	text, err := a.completer.Complete(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	a.logger.Debug("Answered question", "sources", len(sources), "answer_len", len(text))
	return &Answer{Text: text, Sources: sources}, nil
}

// Retrieve embeds question and returns the k nearest chunks without calling the model.
func (a *Answerer) Retrieve(ctx context.Context, question string, k int) ([]storage.Match, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if a.index.Count() == 0 {
		return nil, ErrEmptyIndex
	}

	vector, err := a.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := a.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return matches, nil
}
