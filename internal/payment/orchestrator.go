package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"morntool/backend/internal/config"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/resilience"
)

// CreateInput 发起支付的入参。
// paymentMethod 和 method 二选一，老客户端只传 method。
type CreateInput struct {
	PlanID        string `json:"planId" binding:"required"`
	BillingCycle  string `json:"billingCycle"`
	PaymentMethod string `json:"paymentMethod"`
	Method        string `json:"method"`
	UserID        string `json:"userId"`
	UserEmail     string `json:"userEmail"`
	// ReturnURL / CancelURL 可选的自定义回跳地址，缺省用站点默认页
	ReturnURL string `json:"returnUrl"`
	CancelURL string `json:"cancelUrl"`
}

// CreateResponse 发起支付的统一响应，渠道相关字段按需填充
type CreateResponse struct {
	Success         bool   `json:"success"`
	PaymentMethod   string `json:"paymentMethod"`
	PaymentURL      string `json:"paymentUrl,omitempty"`
	SessionID       string `json:"sessionId,omitempty"`
	OrderID         string `json:"orderId,omitempty"`
	QRCodeURL       string `json:"qrCodeUrl,omitempty"`
	PrepayID        string `json:"prepayId,omitempty"`
	PaymentFormHTML string `json:"paymentFormHtml,omitempty"`
}

// Orchestrator 支付编排：选渠道、下单、落 pending 交易。
// 区域校验在触达渠道之前完成，CN 只放行支付宝/微信，INTL 只放行 Stripe/PayPal。
type Orchestrator struct {
	region    domain.DeploymentRegion
	providers map[string]Provider
	store     domain.PaymentStore
	recovery  *resilience.Recovery
	baseURL   string
	log       *zap.Logger
}

// NewOrchestrator 创建支付编排器，注册全部渠道。
// recovery 可为空，非空时渠道调用失败计入降级统计。
func NewOrchestrator(cfg *config.Config, store domain.PaymentStore, recovery *resilience.Recovery, log *zap.Logger) *Orchestrator {
	providers := map[string]Provider{
		"stripe":    NewStripeProvider(cfg.Payment.Stripe),
		"paypal":    NewPayPalProvider(cfg.Payment.PayPal),
		"alipay":    NewAlipayProvider(cfg.Payment.Alipay),
		"wechatpay": NewWeChatProvider(cfg.Payment.WeChatPay),
	}
	return &Orchestrator{
		region:    cfg.Region.Deployment,
		providers: providers,
		store:     store,
		recovery:  recovery,
		baseURL:   cfg.Server.BaseURL,
		log:       log,
	}
}

// newOrchestratorWithProviders 测试注入用
func newOrchestratorWithProviders(region domain.DeploymentRegion, providers map[string]Provider, store domain.PaymentStore, baseURL string, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		region:    region,
		providers: providers,
		store:     store,
		baseURL:   baseURL,
		log:       log,
	}
}

// CreatePayment 发起一笔支付。
// 校验失败返回 VALIDATION_ERROR，渠道未配置返回 CONFIG_ERROR，
// 渠道调用失败原样透传 API_ERROR，交由传输层映射状态码。
func (o *Orchestrator) CreatePayment(ctx context.Context, input CreateInput) (*CreateResponse, error) {
	plan := domain.MembershipPlanByID(input.PlanID)
	if plan == nil {
		return nil, resilience.New(resilience.ValidationError, "UNKNOWN_PLAN",
			fmt.Sprintf("未知套餐: %s", input.PlanID), false)
	}

	rawMethod := input.PaymentMethod
	if rawMethod == "" {
		rawMethod = input.Method
	}
	method, ok := ResolveMethod(rawMethod)
	if !ok {
		return nil, resilience.New(resilience.ValidationError, "UNKNOWN_METHOD",
			fmt.Sprintf("不支持的支付方式: %s", rawMethod), false)
	}

	// 区域放行检查必须在触达渠道之前
	if !MethodAllowed(o.region, method) {
		return nil, resilience.New(resilience.ValidationError, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("%s 区仅支持: %s", o.region, strings.Join(AllowedMethods(o.region), ", ")), false)
	}

	provider, ok := o.providers[method]
	if !ok || !provider.Configured() {
		return nil, resilience.New(resilience.ConfigError, "PROVIDER_UNAVAILABLE",
			fmt.Sprintf("%s 渠道未配置", method), false)
	}

	cycle := domain.NormalizeBillingCycle(input.BillingCycle)
	amountUSD := domain.PlanPrice(plan, cycle)

	successURL := input.ReturnURL
	if successURL == "" {
		successURL = o.baseURL + "/payment/success"
	}
	cancelURL := input.CancelURL
	if cancelURL == "" {
		cancelURL = o.baseURL + "/payment/cancel"
	}
	// 回跳页靠这两个参数还原订单上下文
	successURL = appendQuery(successURL, map[string]string{
		"planId": plan.ID,
		"cycle":  string(cycle),
	})

	req := OrderRequest{
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		BillingCycle: cycle,
		AmountUSD:    amountUSD,
		AmountCNY:    amountUSD * domain.USDToCNYRate,
		CreditAmount: domain.PlanCreditsGrant(plan, cycle),
		UserID:       input.UserID,
		UserEmail:    input.UserEmail,
		SuccessURL:   successURL,
		CancelURL:    cancelURL,
	}

	result, err := provider.CreateOrder(ctx, req)
	if err != nil {
		if o.recovery != nil {
			o.recovery.RecordError("payment-"+method, err)
		}
		o.log.Error("渠道下单失败",
			zap.String("method", method),
			zap.String("plan", plan.ID),
			zap.Error(err))
		return nil, err
	}

	// 渠道侧已产生订单，落库失败只记日志不打断支付流程
	tx := &domain.PaymentTransaction{
		UserID:        input.UserID,
		UserEmail:     input.UserEmail,
		PlanID:        plan.ID,
		BillingCycle:  cycle,
		CreditAmount:  req.CreditAmount,
		AmountUSD:     req.AmountUSD,
		AmountCNY:     req.AmountCNY,
		PaymentMethod: method,
		TransactionID: result.TransactionID,
		Status:        domain.PaymentPending,
		Region:        o.region,
	}
	if err := o.store.CreateTransaction(ctx, tx); err != nil {
		o.log.Error("pending 交易落库失败",
			zap.String("transactionId", result.TransactionID),
			zap.Error(err))
	}

	return &CreateResponse{
		Success:         true,
		PaymentMethod:   method,
		PaymentURL:      result.PaymentURL,
		SessionID:       result.SessionID,
		OrderID:         result.OrderID,
		QRCodeURL:       result.QRCodeURL,
		PrepayID:        result.PrepayID,
		PaymentFormHTML: result.PaymentFormHTML,
	}, nil
}

// appendQuery 往回跳地址追加查询参数，已有参数保持不动
func appendQuery(rawURL string, params map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
