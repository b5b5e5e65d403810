package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds first attempt", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("recovers from transient failures", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return E(KindProviderAPI, "embed", errors.New("503"))
			}
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		failure := E(KindStore, "query", errors.New("conflict"))
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return failure
		}, 3, time.Millisecond)
		assert.ErrorIs(t, err, failure)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-retryable failure stops immediately", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return E(KindEntityNotFound, "get", errors.New("missing"))
		}, 5, time.Millisecond)
		assert.Equal(t, KindEntityNotFound, KindOf(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("invalid max attempts", func(t *testing.T) {
		err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			cancel()
			return E(KindConnection, "dial", errors.New("refused"))
		}, 5, 10*time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
