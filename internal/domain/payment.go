package domain

import "time"

// BillingCycle 计费周期
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// NormalizeBillingCycle 非 yearly 一律按 monthly 处理
func NormalizeBillingCycle(value string) BillingCycle {
	if value == string(BillingYearly) {
		return BillingYearly
	}
	return BillingMonthly
}

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentTransaction 与具体支付渠道解耦的交易记录。
// 渠道侧订单创建成功后、向客户端返回之前写入一条 pending 记录，
// 状态流转由异步回调驱动。
type PaymentTransaction struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId,omitempty"`
	UserEmail     string           `json:"userEmail"`
	PlanID        string           `json:"planId"`
	BillingCycle  BillingCycle     `json:"billingCycle"`
	CreditAmount  int64            `json:"creditAmount"`
	AmountUSD     float64          `json:"amountUsd"`
	AmountCNY     float64          `json:"amountCny,omitempty"`
	PaymentMethod string           `json:"paymentMethod"`
	TransactionID string           `json:"transactionId"`
	Status        PaymentStatus    `json:"status"`
	Region        DeploymentRegion `json:"region"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// OrderSummary 管理后台订单列表里的一行
type OrderSummary struct {
	ID        string           `json:"id"`
	Region    DeploymentRegion `json:"region"`
	Method    string           `json:"method"`
	Status    string           `json:"status"`
	Amount    float64          `json:"amount"`
	Currency  string           `json:"currency"`
	UserEmail string           `json:"userEmail"`
	CreatedAt time.Time        `json:"createdAt"`
}
