package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 支付指标
	PaymentOrdersTotal *prometheus.CounterVec

	// 下载指标
	DownloadsTotal *prometheus.CounterVec

	// 账号指标
	LoginAttemptsTotal *prometheus.CounterVec
	SignupsTotal       prometheus.Counter

	// 地域解析指标
	GeoLookupsTotal *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec

	// 告警指标
	AlertsTotal *prometheus.CounterVec
}

// NewMetrics 创建监控指标。使用独立的 registry，避免多实例重复注册。
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "morntool_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		PaymentOrdersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_payment_orders_total",
				Help: "Payment order creation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_downloads_total",
				Help: "Granted package downloads by platform and region",
			},
			[]string{"platform", "region"},
		),

		LoginAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),

		SignupsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "morntool_signups_total",
				Help: "Total number of successful signups",
			},
		),

		GeoLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_geo_lookups_total",
				Help: "Geo detections served, by resolved region",
			},
			[]string{"region"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_errors_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "morntool_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_ratelimit_blocks_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),

		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "morntool_alerts_total",
				Help: "Alerts fired by level and component",
			},
			[]string{"level", "component"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPayment 记录一次下单尝试
func (m *Metrics) RecordPayment(provider, outcome string) {
	m.PaymentOrdersTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordDownload 记录一次下载放行
func (m *Metrics) RecordDownload(platform, region string) {
	m.DownloadsTotal.WithLabelValues(platform, region).Inc()
}

// RecordLogin 记录登录结果: success / failed / locked
func (m *Metrics) RecordLogin(result string) {
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordSignup 记录注册成功
func (m *Metrics) RecordSignup() {
	m.SignupsTotal.Inc()
}

// RecordGeoLookup 记录地域解析结果
func (m *Metrics) RecordGeoLookup(region string) {
	m.GeoLookupsTotal.WithLabelValues(region).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock(endpoint string) {
	m.RateLimitBlocks.WithLabelValues(endpoint).Inc()
}

// RecordAlert 记录告警触发
func (m *Metrics) RecordAlert(level, component string) {
	m.AlertsTotal.WithLabelValues(level, component).Inc()
}

// Handler 暴露 /metrics 的处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
