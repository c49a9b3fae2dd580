package domain

import (
	"strings"

	"morntool/backend/internal/geo"
)

// DeploymentRegion 部署区域：CN 使用 CloudBase + 支付宝/微信支付，
// INTL 使用 Supabase + Stripe/PayPal
type DeploymentRegion string

const (
	DeploymentCN   DeploymentRegion = "CN"
	DeploymentINTL DeploymentRegion = "INTL"
)

// NormalizeDeploymentRegion 规范化部署区域字符串，非 INTL 一律按 CN 处理
func NormalizeDeploymentRegion(value string) DeploymentRegion {
	if strings.ToUpper(strings.TrimSpace(value)) == "INTL" {
		return DeploymentINTL
	}
	return DeploymentCN
}

// DatabaseBackend 物理后端类型
type DatabaseBackend string

const (
	BackendCloudBase DatabaseBackend = "cloudbase"
	BackendSupabase  DatabaseBackend = "supabase"
)

// DeploymentPlatform 托管平台
type DeploymentPlatform string

const (
	PlatformTencent DeploymentPlatform = "tencent"
	PlatformVercel  DeploymentPlatform = "vercel"
)

// GeoResult 一次 IP 解析得到的完整地理路由配置。
// 按 IP 缓存 1 小时，只存在内存中，从不持久化。
type GeoResult struct {
	Region         geo.Region         `json:"region"`
	CountryCode    string             `json:"countryCode"`
	Currency       string             `json:"currency"`
	PaymentMethods []string           `json:"paymentMethods"`
	AuthMethods    []string           `json:"authMethods"`
	Database       DatabaseBackend    `json:"database"`
	Deployment     DeploymentPlatform `json:"deployment"`
	GDPRCompliant  bool               `json:"gdprCompliant"`
}

// BuildGeoResult 根据国家代码组装地理路由配置
func BuildGeoResult(countryCode string) GeoResult {
	region := geo.RegionFromCountryCode(countryCode)

	database := BackendSupabase
	deployment := PlatformVercel
	if region == geo.RegionChina {
		database = BackendCloudBase
		deployment = PlatformTencent
	}

	return GeoResult{
		Region:         region,
		CountryCode:    countryCode,
		Currency:       geo.CurrencyByRegion(region),
		PaymentMethods: geo.PaymentMethodsByRegion(region),
		AuthMethods:    geo.AuthMethodsByRegion(region),
		Database:       database,
		Deployment:     deployment,
		GDPRCompliant:  geo.IsEuropeanCountry(countryCode),
	}
}

// DefaultGeoResult 全链路检测失败时的兜底配置（海外/美国）
func DefaultGeoResult() GeoResult {
	return GeoResult{
		Region:         geo.RegionUSA,
		CountryCode:    "US",
		Currency:       "USD",
		PaymentMethods: []string{"stripe", "paypal"},
		AuthMethods:    []string{"google", "email"},
		Database:       BackendSupabase,
		Deployment:     PlatformVercel,
		GDPRCompliant:  false,
	}
}
