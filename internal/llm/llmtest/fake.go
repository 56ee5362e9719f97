// Package llmtest provides a scripted Completer for tests.
package llmtest

import (
	"context"
	"sync"
)

// Fake returns Reply (or Err) and records every prompt it receives.
type Fake struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
}

// Model implements llm.Completer.
func (f *Fake) Model() string { return "fake-llm" }

// Complete implements llm.Completer.
func (f *Fake) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Reply, nil
}

// Prompts returns the prompts received so far.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}
