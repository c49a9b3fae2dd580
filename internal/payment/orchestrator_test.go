package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/resilience"
)

// fakeProvider 记录调用次数和最近一次入参的渠道桩
type fakeProvider struct {
	name       string
	configured bool
	calls      int
	lastReq    OrderRequest
	result     *OrderResult
	err        error
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) CreateOrder(_ context.Context, req OrderRequest) (*OrderResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeStore 最小化的交易存储桩
type fakeStore struct {
	created []*domain.PaymentTransaction
	err     error
}

func (f *fakeStore) CreateTransaction(_ context.Context, tx *domain.PaymentTransaction) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, tx)
	return nil
}

func (f *fakeStore) GetTransaction(context.Context, string) (*domain.PaymentTransaction, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeStore) UpdateTransactionStatus(context.Context, string, domain.PaymentStatus) error {
	return nil
}

func (f *fakeStore) ListRecentOrders(context.Context, int) ([]domain.OrderSummary, error) {
	return nil, nil
}

func newTestOrchestrator(region domain.DeploymentRegion, providers map[string]Provider, store *fakeStore) *Orchestrator {
	return newOrchestratorWithProviders(region, providers, store, "https://app.example.com", zap.NewNop())
}

func errType(t *testing.T, err error) resilience.ErrorType {
	t.Helper()
	var re *resilience.Error
	require.True(t, errors.As(err, &re))
	return re.Type
}

func TestCreatePaymentSuccess(t *testing.T) {
	stripe := &fakeProvider{
		name:       "stripe",
		configured: true,
		result:     &OrderResult{TransactionID: "cs_123", SessionID: "cs_123", PaymentURL: "https://checkout.stripe.com/pay/cs_123"},
	}
	store := &fakeStore{}
	o := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{"stripe": stripe}, store)

	resp, err := o.CreatePayment(context.Background(), CreateInput{
		PlanID:        "pro",
		BillingCycle:  "monthly",
		PaymentMethod: "stripe",
		UserEmail:     "payer@example.com",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "stripe", resp.PaymentMethod)
	assert.Equal(t, "cs_123", resp.SessionID)
	assert.Equal(t, 1, stripe.calls)

	require.Len(t, store.created, 1)
	tx := store.created[0]
	assert.Equal(t, domain.PaymentPending, tx.Status)
	assert.Equal(t, 9.99, tx.AmountUSD)
	assert.Equal(t, int64(900), tx.CreditAmount)
	assert.Equal(t, domain.DeploymentINTL, tx.Region)
}

func TestCreatePaymentAliasNormalization(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", configured: true, result: &OrderResult{TransactionID: "cs_1"}}
	wechat := &fakeProvider{name: "wechatpay", configured: true, result: &OrderResult{TransactionID: "WC1", QRCodeURL: "weixin://wxpay/x"}}

	intl := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{"stripe": stripe}, &fakeStore{})
	resp, err := intl.CreatePayment(context.Background(), CreateInput{PlanID: "basic", PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, "stripe", resp.PaymentMethod)

	cn := newTestOrchestrator(domain.DeploymentCN, map[string]Provider{"wechatpay": wechat}, &fakeStore{})
	resp, err = cn.CreatePayment(context.Background(), CreateInput{PlanID: "basic", PaymentMethod: "wechat"})
	require.NoError(t, err)
	assert.Equal(t, "wechatpay", resp.PaymentMethod)
	assert.Equal(t, "weixin://wxpay/x", resp.QRCodeURL)
}

func TestCreatePaymentMethodFieldFallback(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", configured: true, result: &OrderResult{TransactionID: "cs_1"}}
	o := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{"stripe": stripe}, &fakeStore{})

	// 老客户端只传 method 字段
	resp, err := o.CreatePayment(context.Background(), CreateInput{PlanID: "pro", Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, "stripe", resp.PaymentMethod)

	// 两个字段都没给按未知方式拒绝
	_, err = o.CreatePayment(context.Background(), CreateInput{PlanID: "pro"})
	require.Error(t, err)
	assert.Equal(t, resilience.ValidationError, errType(t, err))
}

func TestCreatePaymentRedirectURLs(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", configured: true, result: &OrderResult{TransactionID: "cs_1"}}
	o := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{"stripe": stripe}, &fakeStore{})

	_, err := o.CreatePayment(context.Background(), CreateInput{
		PlanID:        "business",
		BillingCycle:  "yearly",
		PaymentMethod: "stripe",
	})
	require.NoError(t, err)

	// 回跳地址带上订单上下文参数
	assert.Equal(t, "https://app.example.com/payment/success?cycle=yearly&planId=business", stripe.lastReq.SuccessURL)
	assert.Equal(t, "https://app.example.com/payment/cancel", stripe.lastReq.CancelURL)

	// 自定义 returnUrl / cancelUrl 透传，已有查询参数保留
	_, err = o.CreatePayment(context.Background(), CreateInput{
		PlanID:        "pro",
		PaymentMethod: "stripe",
		ReturnURL:     "https://shop.example.com/done?ref=abc",
		CancelURL:     "https://shop.example.com/back",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/done?cycle=monthly&planId=pro&ref=abc", stripe.lastReq.SuccessURL)
	assert.Equal(t, "https://shop.example.com/back", stripe.lastReq.CancelURL)
}

func TestToMinorUnitsRounds(t *testing.T) {
	// 299.90*100 的浮点表示略小于 29990，截断会少收一分
	assert.Equal(t, int64(29990), toMinorUnits(299.90))
	assert.Equal(t, int64(999), toMinorUnits(9.99))
	assert.Equal(t, int64(0), toMinorUnits(0))

	business := domain.MembershipPlanByID("business")
	price := domain.PlanPrice(business, domain.BillingYearly)
	assert.Equal(t, int64(29990), toMinorUnits(price))
}

func TestCreatePaymentRegionGatingBeforeProvider(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", configured: true, result: &OrderResult{TransactionID: "cs_1"}}
	o := newTestOrchestrator(domain.DeploymentCN, map[string]Provider{"stripe": stripe}, &fakeStore{})

	_, err := o.CreatePayment(context.Background(), CreateInput{PlanID: "pro", PaymentMethod: "stripe"})
	require.Error(t, err)
	assert.Equal(t, resilience.ValidationError, errType(t, err))
	// 区域拦截必须发生在渠道调用之前
	assert.Equal(t, 0, stripe.calls)
}

func TestCreatePaymentUnknownPlanAndMethod(t *testing.T) {
	o := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{}, &fakeStore{})

	_, err := o.CreatePayment(context.Background(), CreateInput{PlanID: "enterprise", PaymentMethod: "stripe"})
	require.Error(t, err)
	assert.Equal(t, resilience.ValidationError, errType(t, err))

	_, err = o.CreatePayment(context.Background(), CreateInput{PlanID: "pro", PaymentMethod: "bitcoin"})
	require.Error(t, err)
	assert.Equal(t, resilience.ValidationError, errType(t, err))
}

func TestCreatePaymentUnconfiguredProvider(t *testing.T) {
	alipay := &fakeProvider{name: "alipay", configured: false}
	o := newTestOrchestrator(domain.DeploymentCN, map[string]Provider{"alipay": alipay}, &fakeStore{})

	_, err := o.CreatePayment(context.Background(), CreateInput{PlanID: "pro", PaymentMethod: "alipay"})
	require.Error(t, err)
	assert.Equal(t, resilience.ConfigError, errType(t, err))
	assert.Equal(t, 0, alipay.calls)
}

func TestCreatePaymentProviderFailurePassedThrough(t *testing.T) {
	paypal := &fakeProvider{
		name:       "paypal",
		configured: true,
		err:        resilience.New(resilience.APIError, "PAYPAL_ORDER", "boom", false),
	}
	store := &fakeStore{}
	o := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{"paypal": paypal}, store)

	_, err := o.CreatePayment(context.Background(), CreateInput{PlanID: "pro", PaymentMethod: "paypal"})
	require.Error(t, err)
	assert.Equal(t, resilience.APIError, errType(t, err))
	assert.Empty(t, store.created)
}

func TestCreatePaymentPersistenceFailureNonFatal(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", configured: true, result: &OrderResult{TransactionID: "cs_1"}}
	store := &fakeStore{err: errors.New("db down")}
	o := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{"stripe": stripe}, store)

	resp, err := o.CreatePayment(context.Background(), CreateInput{PlanID: "pro", PaymentMethod: "stripe"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestCreatePaymentYearlyPricing(t *testing.T) {
	stripe := &fakeProvider{name: "stripe", configured: true, result: &OrderResult{TransactionID: "cs_1"}}
	store := &fakeStore{}
	o := newTestOrchestrator(domain.DeploymentINTL, map[string]Provider{"stripe": stripe}, store)

	_, err := o.CreatePayment(context.Background(), CreateInput{
		PlanID:        "business",
		BillingCycle:  "yearly",
		PaymentMethod: "stripe",
	})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, 299.9, store.created[0].AmountUSD)
	assert.Equal(t, int64(2800*12), store.created[0].CreditAmount)
	assert.Equal(t, domain.BillingYearly, store.created[0].BillingCycle)
}

func TestResolveMethodAndPlaceholders(t *testing.T) {
	for alias, want := range map[string]string{
		"card": "stripe", "Stripe": "stripe", "wechat": "wechatpay", "WECHATPAY": "wechatpay",
	} {
		got, ok := ResolveMethod(alias)
		assert.True(t, ok, alias)
		assert.Equal(t, want, got)
	}
	_, ok := ResolveMethod("venmo")
	assert.False(t, ok)

	assert.True(t, IsPlaceholder(""))
	assert.True(t, IsPlaceholder("your-stripe-key"))
	assert.True(t, IsPlaceholder("your_secret"))
	assert.True(t, IsPlaceholder("sk_placeholder_123"))
	assert.False(t, IsPlaceholder("sk_live_real"))

	assert.Equal(t, "a\nb", NormalizePEM(`a\nb`))
}
