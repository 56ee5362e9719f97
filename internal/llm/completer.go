// Package llm sends rendered prompts to a language model and returns its text.
package llm

import (
	"context"
	"fmt"

	"github.com/bull/socratic-qa/internal/config"
)

// Completer produces one completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// New builds the completer selected by cfg. apiKey is only used by the openai provider.
func New(cfg config.LLMConfig, apiKey string) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(apiKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case config.ProviderOllama:
		o, err := NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
