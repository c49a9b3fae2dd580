package resilience

import (
	"context"

	"go.uber.org/zap"
)

// FallbackHandler 按注册顺序依次尝试候选策略，直到一个成功。
// 调用方先注册质量最高的来源；每次失败都记录到 Recovery 用于服务降级监控。
type FallbackHandler[T any] struct {
	fallbacks []func(ctx context.Context) (T, error)
	recovery  *Recovery
	service   string
	log       *zap.Logger
}

// NewFallbackHandler 创建降级处理器，service 为记录失败时使用的服务键
func NewFallbackHandler[T any](service string, recovery *Recovery, log *zap.Logger) *FallbackHandler[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackHandler[T]{
		recovery: recovery,
		service:  service,
		log:      log,
	}
}

// Add 追加一个候选策略，顺序即优先级
func (f *FallbackHandler[T]) Add(fn func(ctx context.Context) (T, error)) {
	f.fallbacks = append(f.fallbacks, fn)
}

// Execute 依次执行候选策略，全部失败时返回最后一个错误
func (f *FallbackHandler[T]) Execute(ctx context.Context) (T, error) {
	var zero T
	var lastErr error

	for _, fallback := range f.fallbacks {
		result, err := fallback(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		f.log.Warn("fallback failed, trying next one",
			zap.String("service", f.service),
			zap.Error(err),
		)
		if f.recovery != nil {
			f.recovery.RecordError(f.service, Classify(err))
		}
	}

	return zero, lastErr
}
