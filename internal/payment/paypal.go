package payment

import (
	"context"
	"fmt"

	"github.com/plutov/paypal/v4"

	"morntool/backend/internal/config"
	"morntool/backend/internal/resilience"
)

// PayPalProvider PayPal Orders API 渠道
type PayPalProvider struct {
	client *paypal.Client
}

// NewPayPalProvider 创建 PayPal 渠道
func NewPayPalProvider(cfg config.PayPalConfig) *PayPalProvider {
	p := &PayPalProvider{}
	if IsPlaceholder(cfg.ClientID) || IsPlaceholder(cfg.ClientSecret) {
		return p
	}

	base := paypal.APIBaseLive
	if cfg.Sandbox {
		base = paypal.APIBaseSandBox
	}
	client, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, base)
	if err != nil {
		return p
	}
	p.client = client
	return p
}

func (p *PayPalProvider) Name() string { return "paypal" }

func (p *PayPalProvider) Configured() bool { return p.client != nil }

// CreateOrder 创建 PayPal 订单并返回用户批准链接
func (p *PayPalProvider) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	units := []paypal.PurchaseUnitRequest{
		{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    fmt.Sprintf("%.2f", req.AmountUSD),
			},
			Description: fmt.Sprintf("%s (%s)", req.PlanName, req.BillingCycle),
		},
	}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: req.SuccessURL,
		CancelURL: req.CancelURL,
	}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, resilience.Wrap(err, resilience.APIError, "PAYPAL_ORDER", "PayPal 下单失败", false)
	}

	result := &OrderResult{
		TransactionID: order.ID,
		OrderID:       order.ID,
	}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			result.PaymentURL = link.Href
			break
		}
	}
	if result.PaymentURL == "" {
		return nil, resilience.New(resilience.APIError, "PAYPAL_NO_APPROVE_LINK",
			"PayPal 订单缺少批准链接", false)
	}
	return result, nil
}
