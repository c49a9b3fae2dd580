package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"morntool/backend/internal/config"
	"morntool/backend/internal/resilience"
)

// StripeProvider Stripe Checkout 渠道
type StripeProvider struct {
	api       *client.API
	secretKey string
}

// NewStripeProvider 创建 Stripe 渠道
func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	p := &StripeProvider{secretKey: cfg.SecretKey}
	if !IsPlaceholder(cfg.SecretKey) {
		api := &client.API{}
		api.Init(cfg.SecretKey, nil)
		p.api = api
	}
	return p
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) Configured() bool { return p.api != nil }

// CreateOrder 创建 Checkout Session，回跳地址带会话 ID 占位符
func (p *StripeProvider) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	successURL := req.SuccessURL
	if !strings.Contains(successURL, "{CHECKOUT_SESSION_ID}") {
		sep := "?"
		if strings.Contains(successURL, "?") {
			sep = "&"
		}
		successURL += sep + "session_id={CHECKOUT_SESSION_ID}"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s (%s)", req.PlanName, req.BillingCycle)),
					},
					UnitAmount: stripe.Int64(toMinorUnits(req.AmountUSD)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.UserEmail != "" {
		params.CustomerEmail = stripe.String(req.UserEmail)
	}
	params.Context = ctx
	params.AddMetadata("plan_id", req.PlanID)
	params.AddMetadata("billing_cycle", string(req.BillingCycle))

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, resilience.Wrap(err, resilience.APIError, "STRIPE_CHECKOUT", "Stripe 下单失败", false)
	}

	return &OrderResult{
		TransactionID: session.ID,
		SessionID:     session.ID,
		PaymentURL:    session.URL,
	}, nil
}
