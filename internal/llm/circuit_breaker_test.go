package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          2,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})
	ctx := context.Background()
	boom := errors.New("model unavailable")

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(ctx, func() (interface{}, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}
	require.Equal(t, "open", cb.State())

	_, err := cb.Execute(ctx, func() (interface{}, error) {
		t.Fatal("must not be called while open")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerPassesThroughWhenClosed(t *testing.T) {
	cb := NewCircuitBreaker()

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, "closed", cb.State())
}

func TestCircuitBreakerRespectsCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) {
		t.Fatal("must not dispatch with a cancelled context")
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
