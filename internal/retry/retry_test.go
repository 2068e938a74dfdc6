package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		Multiplier:   2.0,
		RetryOn:      []string{gwerrors.TypeTimeout, gwerrors.TypeProviderRequest},
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(), "openai", "gpt-4o",
		func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDo_RecoversAfterRetryableFailure(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(), "openai", "gpt-4o",
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", gwerrors.NewProviderRequestError("openai", "gpt-4o", 503, nil, "unavailable")
			}
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttemptsWithExponentialBackoff(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), fastPolicy(), "openai", "gpt-4o",
		func(context.Context) (string, error) {
			calls++
			return "", gwerrors.NewTimeout("openai", "gpt-4o", nil)
		})
	elapsed := time.Since(start)

	// Exactly maxAttempts calls, sleeping initial + initial*2 between them.
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)

	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.TypeRetriesExhausted, ge.Type)
	assert.False(t, ge.Retryable)
}

func TestDo_FatalErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), "openai", "gpt-4o",
		func(context.Context) (string, error) {
			calls++
			return "", gwerrors.NewProviderRequestError("openai", "gpt-4o", 401, nil, "bad key")
		})
	assert.Equal(t, 1, calls)
	assert.Equal(t, gwerrors.TypeProviderRequest, gwerrors.Kind(err))
}

func TestDo_KindOutsideAllowListNotRetried(t *testing.T) {
	policy := fastPolicy()
	policy.RetryOn = []string{gwerrors.TypeTimeout}

	calls := 0
	_, err := Do(context.Background(), policy, "openai", "gpt-4o",
		func(context.Context) (string, error) {
			calls++
			return "", gwerrors.NewProviderRequestError("openai", "gpt-4o", 503, nil, "unavailable")
		})
	assert.Equal(t, 1, calls)
	assert.Equal(t, gwerrors.TypeProviderRequest, gwerrors.Kind(err))
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		policy := fastPolicy()
		policy.InitialDelay = time.Minute
		_, err := Do(ctx, policy, "openai", "gpt-4o",
			func(context.Context) (string, error) {
				calls++
				return "", gwerrors.NewTimeout("openai", "gpt-4o", nil)
			})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, 1, calls)
		// A caller-side cancel is not an upstream timeout.
		assert.Equal(t, gwerrors.TypeCanceled, gwerrors.Kind(err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDo_DeadlineDuringBackoffIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	policy := fastPolicy()
	policy.InitialDelay = time.Minute
	_, err := Do(ctx, policy, "openai", "gpt-4o",
		func(context.Context) (string, error) {
			return "", gwerrors.NewTimeout("openai", "gpt-4o", nil)
		})

	assert.Equal(t, gwerrors.TypeTimeout, gwerrors.Kind(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 2.0}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}
