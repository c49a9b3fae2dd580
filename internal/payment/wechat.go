package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"

	"morntool/backend/internal/config"
	"morntool/backend/internal/resilience"
)

// WeChatProvider 微信支付 Native 扫码渠道。
// 下单拿到收款二维码链接，前端自行渲染二维码。
type WeChatProvider struct {
	cfg     config.WeChatPayConfig
	service *native.NativeApiService

	now func() time.Time
}

// NewWeChatProvider 创建微信支付渠道
func NewWeChatProvider(cfg config.WeChatPayConfig) *WeChatProvider {
	p := &WeChatProvider{cfg: cfg, now: time.Now}
	if IsPlaceholder(cfg.MchID) || IsPlaceholder(cfg.PrivateKey) || IsPlaceholder(cfg.APIv3Key) {
		return p
	}

	privateKey, err := utils.LoadPrivateKey(NormalizePEM(cfg.PrivateKey))
	if err != nil {
		return p
	}
	client, err := core.NewClient(context.Background(),
		option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.CertSerialNo, privateKey, cfg.APIv3Key))
	if err != nil {
		return p
	}
	p.service = &native.NativeApiService{Client: client}
	return p
}

func (p *WeChatProvider) Name() string { return "wechatpay" }

func (p *WeChatProvider) Configured() bool { return p.service != nil }

// CreateOrder 发起 Native 下单，金额按分计
func (p *WeChatProvider) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	tradeNo := wechatTradeNo(p.now())

	resp, _, err := p.service.Prepay(ctx, native.PrepayRequest{
		Appid:       core.String(p.cfg.AppID),
		Mchid:       core.String(p.cfg.MchID),
		Description: core.String(fmt.Sprintf("%s (%s)", req.PlanName, req.BillingCycle)),
		OutTradeNo:  core.String(tradeNo),
		NotifyUrl:   core.String(p.cfg.NotifyURL),
		Amount: &native.Amount{
			Total:    core.Int64(toMinorUnits(req.AmountCNY)),
			Currency: core.String("CNY"),
		},
	})
	if err != nil {
		return nil, resilience.Wrap(err, resilience.APIError, "WECHAT_PREPAY", "微信支付下单失败", false)
	}

	result := &OrderResult{TransactionID: tradeNo}
	if resp.CodeUrl != nil {
		result.QRCodeURL = *resp.CodeUrl
	}
	return result, nil
}
