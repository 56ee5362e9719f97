package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/socratic-qa/internal/chunker"
	"github.com/bull/socratic-qa/internal/embedding/embeddingtest"
	"github.com/bull/socratic-qa/internal/llm/llmtest"
	"github.com/bull/socratic-qa/internal/logging"
	"github.com/bull/socratic-qa/internal/provider"
	"github.com/bull/socratic-qa/internal/storage"
)

func indexOf(t *testing.T, embedder *embeddingtest.Fake, texts ...string) *storage.Memory {
	t.Helper()
	idx, err := storage.NewMemory("test", embedder.Model())
	require.NoError(t, err)

	records := make([]storage.Record, len(texts))
	for i, text := range texts {
		records[i] = storage.Record{
			Chunk: chunker.Chunk{
				ID:       string(rune('a' + i)),
				Text:     text,
				Metadata: map[string]any{"source": "spiritual_database/doc.txt", "chunk_index": i},
			},
			Vector: embeddingtest.Vector(text),
		}
	}
	if len(records) > 0 {
		require.NoError(t, idx.Add(context.Background(), records))
	}
	return idx
}

func TestAsk_SkyIsBlue(t *testing.T) {
	embedder := &embeddingtest.Fake{}
	completer := &llmtest.Fake{Reply: "The sky is blue. But what makes a colour true?"}
	idx := indexOf(t, embedder, "The sky is blue.")

	a, err := New(idx, embedder, completer, 4, logging.Discard())
	require.NoError(t, err)

	answer, err := a.Ask(context.Background(), "What color is the sky?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	require.Len(t, answer.Sources, 1)
	assert.Contains(t, answer.Sources[0].Text, "The sky is blue.")
	assert.Equal(t, "spiritual_database/doc.txt", answer.Sources[0].Metadata["source"])
}

func TestAsk_PromptCarriesContextAndQuestion(t *testing.T) {
	embedder := &embeddingtest.Fake{}
	completer := &llmtest.Fake{Reply: " raw output \n"}
	idx := indexOf(t, embedder,
		"Justice is giving each their due.",
		"Courage is knowing what not to fear.",
		"The soul is immortal.",
	)

	a, err := New(idx, embedder, completer, 2, logging.Discard())
	require.NoError(t, err)

	answer, err := a.Ask(context.Background(), "What is justice?")
	require.NoError(t, err)
	assert.Equal(t, " raw output \n", answer.Text, "model output is returned unmodified")
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "Justice is giving each their due.", answer.Sources[0].Text)

	prompts := completer.Prompts()
	require.Len(t, prompts, 1)
	p := prompts[0]
	assert.True(t, strings.HasPrefix(p, "You are a Socratic dialogue agent."))
	assert.Contains(t, p, "CONTEXT:\n"+answer.Sources[0].Text+"\n\n"+answer.Sources[1].Text+"\n\nUSER'S QUESTION:")
	assert.Contains(t, p, "USER'S QUESTION:\nWhat is justice?\n")
	assert.True(t, strings.HasSuffix(p, "SOCRATIC RESPONSE (Answer, followed by a question):"))
}

func TestAsk_QuestionIsNotInterpretedAsTemplate(t *testing.T) {
	embedder := &embeddingtest.Fake{}
	completer := &llmtest.Fake{Reply: "ok"}
	idx := indexOf(t, embedder, "Text with {{.braces}} inside.")

	a, err := New(idx, embedder, completer, 4, logging.Discard())
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "What about {{.context}} and <b>tags</b>?")
	require.NoError(t, err)
	p := completer.Prompts()[0]
	assert.Contains(t, p, "What about {{.context}} and <b>tags</b>?")
	assert.Contains(t, p, "Text with {{.braces}} inside.")
}

func TestAsk_EmptyIndex(t *testing.T) {
	embedder := &embeddingtest.Fake{}
	completer := &llmtest.Fake{Reply: "unused"}
	a, err := New(indexOf(t, embedder), embedder, completer, 4, logging.Discard())
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "Anyone there?")
	assert.ErrorIs(t, err, ErrEmptyIndex)
	assert.Empty(t, completer.Prompts(), "no model call on an empty index")
	assert.Equal(t, 0, embedder.Queries())
}

func TestAsk_BlankQuestion(t *testing.T) {
	embedder := &embeddingtest.Fake{}
	a, err := New(indexOf(t, embedder, "x"), embedder, &llmtest.Fake{}, 4, logging.Discard())
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "  \t")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAsk_ProviderErrorsPropagate(t *testing.T) {
	embedder := &embeddingtest.Fake{}
	idx := indexOf(t, embedder, "x")

	timeout := &provider.Error{Op: "complete", Kind: provider.KindTimeout, Err: context.DeadlineExceeded}
	a, err := New(idx, embedder, &llmtest.Fake{Err: timeout}, 4, logging.Discard())
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, provider.ErrTimeout)

	broken := &embeddingtest.Fake{Err: errors.New("embedding service down")}
	a, err = New(idx, broken, &llmtest.Fake{}, 4, logging.Discard())
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), "q")
	assert.ErrorContains(t, err, "embedding service down")
}

func TestNew_EmbeddingModelMismatch(t *testing.T) {
	idx := indexOf(t, &embeddingtest.Fake{ModelName: "text-embedding-3-small"}, "x")

	_, err := New(idx, &embeddingtest.Fake{ModelName: "text-embedding-3-large"}, &llmtest.Fake{}, 4, logging.Discard())
	assert.ErrorIs(t, err, ErrEmbeddingModelMismatch)
}

func TestRetrieve_ReturnsScores(t *testing.T) {
	embedder := &embeddingtest.Fake{}
	idx := indexOf(t, embedder, "The sky is blue.", "Grass is green.")
	a, err := New(idx, embedder, &llmtest.Fake{}, 4, logging.Discard())
	require.NoError(t, err)

	matches, err := a.Retrieve(context.Background(), "Is the sky blue?", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "The sky is blue.", matches[0].Chunk.Text)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}
