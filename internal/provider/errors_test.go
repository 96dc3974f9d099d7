package provider_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider"
)

func TestClassify(t *testing.T) {
	t.Run("should pass nil through", func(t *testing.T) {
		require.NoError(t, provider.Classify(context.Background(), "reasoning", 0, nil))
	})

	t.Run("should map a call deadline to upstream timeout", func(t *testing.T) {
		err := provider.Classify(context.Background(), "reasoning", 0, context.DeadlineExceeded)
		require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
		require.True(t, domain.IsRetryable(err))
	})

	t.Run("should return caller cancellation unchanged", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := provider.Classify(ctx, "reasoning", 0, errors.New("read tcp: use of closed connection"))
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, domain.ErrUpstreamTimeout)
		require.False(t, domain.IsRetryable(err))
	})

	t.Run("should classify status codes", func(t *testing.T) {
		tests := []struct {
			status    int
			retryable bool
		}{
			{status: http.StatusTooManyRequests, retryable: true},
			{status: http.StatusBadGateway, retryable: true},
			{status: http.StatusUnauthorized, retryable: false},
			{status: http.StatusBadRequest, retryable: false},
			{status: 0, retryable: true},
		}

		for _, tt := range tests {
			err := provider.Classify(context.Background(), "retrieval", tt.status, errors.New("boom"))

			var upstreamErr *domain.UpstreamError
			require.ErrorAs(t, err, &upstreamErr)
			require.Equal(t, "retrieval", upstreamErr.Service)
			require.Equal(t, tt.status, upstreamErr.StatusCode)
			require.Equal(t, tt.retryable, domain.IsRetryable(err), "status %d", tt.status)
		}
	})
}

func TestWithTimeout(t *testing.T) {
	t.Run("should apply a positive timeout", func(t *testing.T) {
		ctx, cancel := provider.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		require.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
	})

	t.Run("should leave the deadline unset for zero", func(t *testing.T) {
		ctx, cancel := provider.WithTimeout(context.Background(), 0)
		defer cancel()

		_, ok := ctx.Deadline()
		require.False(t, ok)
	})
}
