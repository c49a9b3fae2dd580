package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/resilience"
	"morntool/backend/internal/service"
)

// 常用提示信息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInternalError  = "服务器内部错误，请稍后重试"
)

// errorMessages 业务错误到中文提示的映射
var errorMessages = map[error]string{
	service.ErrInvalidCredentials: "邮箱或密码错误",
	service.ErrAccountLocked:      "账号已临时锁定，请稍后再试",
	service.ErrEmailTaken:         "该邮箱已被注册",
	service.ErrInvalidToken:       "登录状态已失效，请重新登录",
	service.ErrWeakPassword:       "密码长度至少 8 位",
	domain.ErrNotFound:            "资源不存在",
	domain.ErrAlreadyExists:       "资源已存在",
}

// GetErrorMessage 获取错误对应的中文消息
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return MsgInternalError
}

// statusForError 把分类错误映射到 HTTP 状态码。
// 参数校验类 400，渠道未配置 503，其余走 500。
func statusForError(err error) int {
	var appErr *resilience.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case resilience.ValidationError:
		return http.StatusBadRequest
	case resilience.ConfigError:
		return http.StatusServiceUnavailable
	case resilience.TimeoutError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError 统一的错误出口：业务错误带语义状态码，其余兜底 500
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccountLocked):
		Forbidden(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		Unauthorized(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, domain.ErrAlreadyExists):
		Conflict(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrWeakPassword):
		BadRequest(c, GetErrorMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		NotFound(c, GetErrorMessage(err))
	default:
		var appErr *resilience.Error
		if errors.As(err, &appErr) && appErr.Message != "" {
			Error(c, statusForError(err), appErr.Message)
			return
		}
		Error(c, statusForError(err), GetErrorMessage(err))
	}
}
