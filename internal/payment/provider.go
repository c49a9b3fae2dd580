package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"morntool/backend/internal/domain"
)

// OrderRequest 一次渠道下单的入参，金额已按计费周期算好
type OrderRequest struct {
	PlanID       string
	PlanName     string
	BillingCycle domain.BillingCycle
	AmountUSD    float64
	AmountCNY    float64
	CreditAmount int64
	UserID       string
	UserEmail    string
	// SuccessURL / CancelURL 浏览器回跳地址
	SuccessURL string
	CancelURL  string
}

// OrderResult 渠道下单结果，字段按渠道填充：
// Stripe 给 SessionID+PaymentURL，PayPal 给 OrderID+PaymentURL，
// 支付宝给 PaymentURL（页面跳转），微信给 QRCodeURL（Native 扫码）。
type OrderResult struct {
	TransactionID   string
	PaymentURL      string
	SessionID       string
	OrderID         string
	QRCodeURL       string
	PrepayID        string
	PaymentFormHTML string
}

// Provider 单个支付渠道
type Provider interface {
	Name() string
	// Configured 凭据是否可用，占位符配置视为未配置
	Configured() bool
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// 渠道别名归一化表，前端历史上传过 card / wechat 等叫法
var methodAliases = map[string]string{
	"stripe":    "stripe",
	"card":      "stripe",
	"paypal":    "paypal",
	"alipay":    "alipay",
	"wechatpay": "wechatpay",
	"wechat":    "wechatpay",
}

// methodsByRegion 每个部署区域放行的渠道
var methodsByRegion = map[domain.DeploymentRegion][]string{
	domain.DeploymentCN:   {"alipay", "wechatpay"},
	domain.DeploymentINTL: {"stripe", "paypal"},
}

// ResolveMethod 把渠道别名归一化为标准名
func ResolveMethod(method string) (string, bool) {
	canonical, ok := methodAliases[strings.ToLower(strings.TrimSpace(method))]
	return canonical, ok
}

// MethodAllowed 渠道在该部署区域是否放行
func MethodAllowed(region domain.DeploymentRegion, method string) bool {
	for _, allowed := range methodsByRegion[region] {
		if allowed == method {
			return true
		}
	}
	return false
}

// AllowedMethods 该区域放行的渠道列表
func AllowedMethods(region domain.DeploymentRegion) []string {
	return methodsByRegion[region]
}

// IsPlaceholder 凭据是否为占位符。
// 模板 .env 里的 your-xxx / placeholder 值直接当作未配置。
func IsPlaceholder(credential string) bool {
	trimmed := strings.TrimSpace(credential)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "your-") ||
		strings.Contains(lower, "your_") ||
		strings.Contains(lower, "placeholder")
}

// toMinorUnits 元/美元转分，四舍五入避免浮点截断少收一分
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// NormalizePEM 把环境变量里转义的 \n 还原成真实换行
func NormalizePEM(pem string) string {
	return strings.ReplaceAll(pem, `\n`, "\n")
}

// alipayTradeNo 生成支付宝商户订单号，形如 ALIPAY_PRO_1717243200000
func alipayTradeNo(planID string, now time.Time) string {
	return fmt.Sprintf("ALIPAY_%s_%d", strings.ToUpper(planID), now.UnixMilli())
}

// wechatTradeNo 生成微信商户订单号，形如 WC1717243200000a1b2c3d4
func wechatTradeNo(now time.Time) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("WC%d%s", now.UnixMilli(), hex.EncodeToString(buf))
}
