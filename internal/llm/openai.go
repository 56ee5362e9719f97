package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/socratic-qa/internal/provider"
)

// ErrNoChoices is returned when the model responds without any completion.
var ErrNoChoices = errors.New("model returned no choices")

// OpenAI completes prompts with the Chat Completions API as a single user message.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates a chat completer. An empty baseURL means api.openai.com.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

// Model implements Completer.
func (c *OpenAI) Model() string { return c.model }

// Complete implements Completer.
func (c *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return provider.Call(ctx, "complete", c.timeout, func(ctx context.Context) (string, error) {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: openai.ChatModel(c.model),
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}
		return resp.Choices[0].Message.Content, nil
	})
}
