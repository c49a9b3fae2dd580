package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smartwalle/alipay/v3"

	"morntool/backend/internal/config"
	"morntool/backend/internal/resilience"
)

// AlipayProvider 支付宝电脑网站支付渠道。
// 金额用人民币，订单号形如 ALIPAY_PRO_1717243200000。
type AlipayProvider struct {
	client *alipay.Client

	now func() time.Time
}

// NewAlipayProvider 创建支付宝渠道。
// 配了网关覆盖地址时按地址判定沙箱环境，否则用配置开关。
func NewAlipayProvider(cfg config.AlipayConfig) *AlipayProvider {
	p := &AlipayProvider{now: time.Now}
	if IsPlaceholder(cfg.AppID) || IsPlaceholder(cfg.PrivateKey) {
		return p
	}

	sandbox := cfg.Sandbox
	if cfg.GatewayURL != "" {
		sandbox = strings.Contains(cfg.GatewayURL, "alipaydev")
	}

	client, err := alipay.New(cfg.AppID, NormalizePEM(cfg.PrivateKey), !sandbox)
	if err != nil {
		return p
	}
	if !IsPlaceholder(cfg.PublicKey) {
		if err := client.LoadAliPayPublicKey(NormalizePEM(cfg.PublicKey)); err != nil {
			return p
		}
	}
	p.client = client
	return p
}

func (p *AlipayProvider) Name() string { return "alipay" }

func (p *AlipayProvider) Configured() bool { return p.client != nil }

// CreateOrder 发起电脑网站支付，返回收银台跳转地址
func (p *AlipayProvider) CreateOrder(_ context.Context, req OrderRequest) (*OrderResult, error) {
	tradeNo := alipayTradeNo(req.PlanID, p.now())

	pay := alipay.TradePagePay{}
	pay.OutTradeNo = tradeNo
	pay.Subject = fmt.Sprintf("%s (%s)", req.PlanName, req.BillingCycle)
	pay.TotalAmount = fmt.Sprintf("%.2f", req.AmountCNY)
	pay.ProductCode = "FAST_INSTANT_TRADE_PAY"
	pay.ReturnURL = req.SuccessURL

	payURL, err := p.client.TradePagePay(pay)
	if err != nil {
		return nil, resilience.Wrap(err, resilience.APIError, "ALIPAY_PAGE_PAY", "支付宝下单失败", false)
	}

	return &OrderResult{
		TransactionID: tradeNo,
		PaymentURL:    payURL.String(),
	}, nil
}
