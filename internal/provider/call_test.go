package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_Success(t *testing.T) {
	got, err := Call(context.Background(), "complete", time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestCall_Timeout(t *testing.T) {
	_, err := Call(context.Background(), "complete", 10*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindTimeout, perr.Kind)
	assert.Equal(t, "complete", perr.Op)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrFailed)
}

func TestCall_ProviderFailureKeepsCause(t *testing.T) {
	cause := errors.New("429 too many requests")
	_, err := Call(context.Background(), "embed_query", time.Second, func(ctx context.Context) ([]float32, error) {
		return nil, cause
	})

	assert.ErrorIs(t, err, ErrFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "embed_query failed")
}

func TestCall_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Call(ctx, "complete", time.Second, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestCall_NoTimeout(t *testing.T) {
	_, err := Call(context.Background(), "complete", 0, func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return 1, nil
	})
	require.NoError(t, err)
}
