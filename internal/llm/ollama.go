package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/bull/socratic-qa/internal/provider"
)

// Ollama completes prompts against a local Ollama server through langchaingo.
type Ollama struct {
	model   *ollama.LLM
	name    string
	timeout time.Duration
}

// NewOllama connects to serverURL (empty means localhost:11434).
func NewOllama(serverURL, model string, timeout time.Duration) (*Ollama, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &Ollama{model: m, name: model, timeout: timeout}, nil
}

// Model implements Completer.
func (o *Ollama) Model() string { return o.name }

// Complete implements Completer.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	return provider.Call(ctx, "complete", o.timeout, func(ctx context.Context) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, o.model, prompt)
	})
}
