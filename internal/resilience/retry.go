package resilience

import (
	"context"
	"math"
	"time"
)

// RetryOptions 重试策略参数
type RetryOptions struct {
	MaxRetries        int           // 最大重试次数（不含首次尝试）
	Delay             time.Duration // 首次重试前的等待时间
	BackoffMultiplier float64       // 退避倍数，每次重试乘以该系数
}

// DefaultRetryOptions 默认重试策略：3 次重试，1 秒起步，指数退避
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:        3,
		Delay:             time.Second,
		BackoffMultiplier: 2,
	}
}

// WithRetry 执行操作并在可重试错误上按指数退避重试。
// 共执行 MaxRetries+1 次；不可重试的错误立即中止；重试耗尽后返回最后一次的错误。
func WithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts RetryOptions) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		if attempt == opts.MaxRetries {
			break
		}

		delay := time.Duration(float64(opts.Delay) * math.Pow(opts.BackoffMultiplier, float64(attempt)))
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// sleep 可被上下文取消的等待
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
