package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryRetryableExhausted(t *testing.T) {
	calls := 0
	retryableErr := New(NetworkError, "NETWORK_FAILED", "connection reset", true)

	_, err := WithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", retryableErr
	}, RetryOptions{MaxRetries: 2, Delay: time.Millisecond, BackoffMultiplier: 2})

	// 1 次初始 + 2 次重试 = 恰好 3 次
	assert.Equal(t, 3, calls)
	assert.Equal(t, retryableErr, err)
}

func TestWithRetryNonRetryableShortCircuit(t *testing.T) {
	calls := 0
	fatalErr := New(ValidationError, "INVALID_RESPONSE", "missing field", false)

	_, err := WithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", fatalErr
	}, RetryOptions{MaxRetries: 5, Delay: time.Millisecond, BackoffMultiplier: 2})

	assert.Equal(t, 1, calls)
	assert.Equal(t, fatalErr, err)
}

func TestWithRetryEventualSuccess(t *testing.T) {
	calls := 0

	result, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, New(TimeoutError, "TIMEOUT", "request timeout", true)
		}
		return 42, nil
	}, RetryOptions{MaxRetries: 3, Delay: time.Millisecond, BackoffMultiplier: 2})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestWithRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := WithRetry(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "", New(NetworkError, "NETWORK_FAILED", "down", true)
	}, RetryOptions{MaxRetries: 3, Delay: 10 * time.Millisecond, BackoffMultiplier: 2})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFallbackOrdering(t *testing.T) {
	var order []int
	handler := NewFallbackHandler[string]("test-service", NewRecovery(), nil)

	handler.Add(func(ctx context.Context) (string, error) {
		order = append(order, 1)
		return "", New(APIError, "API_FAILED", "primary down", false)
	})
	handler.Add(func(ctx context.Context) (string, error) {
		order = append(order, 2)
		return "", New(APIError, "API_FAILED", "secondary down", false)
	})
	handler.Add(func(ctx context.Context) (string, error) {
		order = append(order, 3)
		return "tertiary-result", nil
	})

	result, err := handler.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tertiary-result", result)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestFallbackAllFailReturnsLastError(t *testing.T) {
	handler := NewFallbackHandler[string]("test-service", NewRecovery(), nil)

	firstErr := New(APIError, "API_FAILED", "first", false)
	lastErr := New(APIError, "API_FAILED", "last", false)

	handler.Add(func(ctx context.Context) (string, error) { return "", firstErr })
	handler.Add(func(ctx context.Context) (string, error) { return "", New(APIError, "API_FAILED", "second", false) })
	handler.Add(func(ctx context.Context) (string, error) { return "", lastErr })

	_, err := handler.Execute(context.Background())
	assert.Equal(t, lastErr, err)
}

func TestClassify(t *testing.T) {
	// 已分类的错误原样返回
	classified := New(ConfigError, "MISSING_KEY", "no key", false)
	assert.Equal(t, classified, Classify(classified))

	// context 超时可重试
	deadline := Classify(context.DeadlineExceeded)
	assert.Equal(t, TimeoutError, deadline.Type)
	assert.True(t, deadline.Retryable)

	// 未知错误不可重试
	unknown := Classify(assert.AnError)
	assert.Equal(t, UnknownError, unknown.Type)
	assert.False(t, unknown.Retryable)
}
