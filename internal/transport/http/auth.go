package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"morntool/backend/internal/monitoring"
	"morntool/backend/internal/service"
)

// AuthHandler 站内账号的注册登录接口
type AuthHandler struct {
	auth    *service.AuthService
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(auth *service.AuthService, metrics *monitoring.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, metrics: metrics, log: log}
}

// Signup 注册
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var input service.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.auth.Signup(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSignup()
	}
	Created(c, resp)
}

// Login 登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input service.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), input)
	if err != nil {
		h.recordLogin(err)
		writeError(c, err)
		return
	}

	h.recordLogin(nil)
	Success(c, resp)
}

// Refresh 刷新令牌
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var input struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.auth.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, resp)
}

func (h *AuthHandler) recordLogin(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.RecordLogin("success")
	case errors.Is(err, service.ErrAccountLocked):
		h.metrics.RecordLogin("locked")
	default:
		h.metrics.RecordLogin("failed")
	}
}
