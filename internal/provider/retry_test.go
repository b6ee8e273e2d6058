package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goran-ethernal/chaindexor/internal/logger"
)

func TestBackoffFor_GrowsWithRetries(t *testing.T) {
	first := backoffFor(0)
	second := backoffFor(1)
	require.Greater(t, second, first/2) // jittered, so only loosely bounded below

	capped := backoffFor(maxBackoffExponent + 5)
	alsoCapped := backoffFor(maxBackoffExponent)
	require.InDelta(t, float64(alsoCapped), float64(capped), float64(alsoCapped)*jitterFraction*2+1)
}

func TestBackoffFor_NeverNegative(t *testing.T) {
	for i := 0; i < 50; i++ {
		require.True(t, backoffFor(i) >= 0)
	}
}

func TestRetryForever_SucceedsWithoutRetry(t *testing.T) {
	log := logger.NewNopLogger()
	calls := 0
	err := retryForever(context.Background(), log, "test-op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryForever_RetriesUntilSuccess(t *testing.T) {
	log := logger.NewNopLogger()
	calls := 0
	err := retryForeverWithBackoffOverride(t, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, log)
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryForever_StopsOnContextCancellation(t *testing.T) {
	log := logger.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryForever(ctx, log, "test-op", func() error {
		return errors.New("always fails")
	})
	require.ErrorIs(t, err, context.Canceled)
}

// retryForeverWithBackoffOverride exercises retryForever under a 5s
// deadline that bounds the test; the retries still sleep the real jittered
// exponential backoff between attempts.
func retryForeverWithBackoffOverride(t *testing.T, op func() error, log *logger.Logger) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return retryForever(ctx, log, "test-op", op)
}
