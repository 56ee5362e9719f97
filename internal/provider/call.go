// Package provider runs calls to external embedding and language-model services
// under an explicit timeout and classifies their failures.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bull/socratic-qa/internal/metrics"
)

// Kind classifies a failed provider call.
type Kind string

const (
	KindTimeout  Kind = "timeout"
	KindCanceled Kind = "canceled"
	KindFailed   Kind = "failed"
)

// Sentinels matched with errors.Is against an *Error.
var (
	ErrTimeout  = errors.New("provider call timed out")
	ErrCanceled = errors.New("provider call canceled")
	ErrFailed   = errors.New("provider call failed")
)

// Error is the typed result of a failed provider call.
type Error struct {
	Op   string // e.g. "embed_query", "complete"
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying provider error.
func (e *Error) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindTimeout:
		return ErrTimeout
	case KindCanceled:
		return ErrCanceled
	default:
		return ErrFailed
	}
}

// Call runs fn with a context bounded by timeout (no bound when timeout <= 0).
// A nil error from fn is success; anything else is returned as *Error.
func Call[T any](ctx context.Context, op string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(callCtx)
	if err == nil {
		metrics.ProviderCalls.WithLabelValues(op, "ok").Observe(time.Since(start).Seconds())
		return result, nil
	}

	kind := classify(ctx, callCtx, err)
	metrics.ProviderCalls.WithLabelValues(op, string(kind)).Observe(time.Since(start).Seconds())

	var zero T
	return zero, &Error{Op: op, Kind: kind, Err: err}
}

func classify(parent, callCtx context.Context, err error) Kind {
	switch {
	case parent.Err() != nil && errors.Is(parent.Err(), context.Canceled):
		return KindCanceled
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindFailed
	}
}
