package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
)

// ErrorType 错误分类
type ErrorType string

const (
	NetworkError    ErrorType = "NETWORK_ERROR"
	APIError        ErrorType = "API_ERROR"
	ValidationError ErrorType = "VALIDATION_ERROR"
	ConfigError     ErrorType = "CONFIG_ERROR"
	TimeoutError    ErrorType = "TIMEOUT_ERROR"
	UnknownError    ErrorType = "UNKNOWN_ERROR"
)

// Error 带分类和重试标记的服务错误
type Error struct {
	Type      ErrorType
	Code      string
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New 创建分类错误
func New(errType ErrorType, code, message string, retryable bool) *Error {
	return &Error{
		Type:      errType,
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}
}

// Wrap 包装底层错误并附加分类
func Wrap(err error, errType ErrorType, code, message string, retryable bool) *Error {
	return &Error{
		Type:      errType,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		cause:     err,
	}
}

// Classify 将任意错误映射到封闭的错误分类。
// 网络/超时错误可重试；校验和 API 语义错误只能改请求修复，不可重试。
func Classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, TimeoutError, "TIMEOUT", "request timeout", true)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Wrap(err, TimeoutError, "TIMEOUT", "request timeout", true)
		}
		return Wrap(err, NetworkError, "NETWORK_FAILED", "network connection failed", true)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return Wrap(err, APIError, "INVALID_RESPONSE", "invalid response format", false)
	}

	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "timeout") {
			return Wrap(err, TimeoutError, "TIMEOUT", "request timeout", true)
		}
		if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
			return Wrap(err, NetworkError, "NETWORK_FAILED", "network connection failed", true)
		}
		return Wrap(err, UnknownError, "UNKNOWN", msg, false)
	}

	return New(UnknownError, "UNKNOWN", "unknown error occurred", false)
}

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}
