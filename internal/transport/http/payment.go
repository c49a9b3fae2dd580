package httptransport

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"morntool/backend/internal/monitoring"
	"morntool/backend/internal/payment"
)

// PaymentCreator 发起一笔支付
type PaymentCreator interface {
	CreatePayment(ctx context.Context, input payment.CreateInput) (*payment.CreateResponse, error)
}

// PaymentHandler 支付下单接口
type PaymentHandler struct {
	payments PaymentCreator
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewPaymentHandler 创建支付处理器
func NewPaymentHandler(payments PaymentCreator, metrics *monitoring.Metrics, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, metrics: metrics, log: log}
}

// Create 发起支付
// POST /api/payment/create
func (h *PaymentHandler) Create(c *gin.Context) {
	var input payment.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.payments.CreatePayment(c.Request.Context(), input)
	if err != nil {
		h.recordOutcome(input.PaymentMethod, statusForError(err))
		h.log.Warn("支付下单失败",
			zap.String("plan", input.PlanID),
			zap.String("method", input.PaymentMethod),
			zap.Error(err))
		writeError(c, err)
		return
	}

	h.recordOutcome(resp.PaymentMethod, http.StatusOK)
	Success(c, resp)
}

func (h *PaymentHandler) recordOutcome(method string, status int) {
	if h.metrics == nil {
		return
	}
	switch {
	case status == http.StatusOK:
		h.metrics.RecordPayment(method, "created")
	case status >= 500:
		h.metrics.RecordPayment(method, "failed")
	default:
		h.metrics.RecordPayment(method, "rejected")
	}
}
