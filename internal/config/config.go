package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"morntool/backend/internal/domain"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
	// BaseURL 对外访问地址，用于拼支付回跳链接
	BaseURL string
	// Production 生产模式：CSRF cookie 加 Secure 等
	Production bool
}

// RegionConfig 定义部署区域
type RegionConfig struct {
	// Deployment 当前实例所在区域: "CN" 或 "INTL"
	Deployment domain.DeploymentRegion
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	// File 非空时日志同时写入文件并按大小轮转
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// SupabaseConfig 定义海外区 Supabase 后端配置
type SupabaseConfig struct {
	DSN string // Postgres 连接字符串
	// 对象存储走 S3 兼容接口
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
}

// CloudBaseConfig 定义国内区 CloudBase 后端配置
type CloudBaseConfig struct {
	EnvID     string // 环境 ID
	SecretID  string // 腾讯云 API 密钥 ID
	SecretKey string // 腾讯云 API 密钥
	BaseURL   string // 网关地址，留空用官方默认
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// GeoConfig 定义地域路由配置
type GeoConfig struct {
	// CacheBackend 结果缓存后端: "memory" 或 "redis"
	CacheBackend string
	// MMDBPath 可选的 GeoLite2 Country 库文件路径
	MMDBPath string
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "morntool"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 1 小时
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// StripeConfig Stripe 渠道配置
type StripeConfig struct {
	SecretKey string
}

// PayPalConfig PayPal 渠道配置
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Sandbox      bool
}

// AlipayConfig 支付宝渠道配置
type AlipayConfig struct {
	AppID      string
	PrivateKey string // 应用私钥，PEM
	PublicKey  string // 支付宝公钥，PEM
	Sandbox    bool
	// GatewayURL 网关地址覆盖，留空按 Sandbox 选官方网关
	GatewayURL string
}

// WeChatPayConfig 微信支付渠道配置
type WeChatPayConfig struct {
	AppID        string
	MchID        string
	CertSerialNo string
	PrivateKey   string // 商户 API 私钥，PEM
	APIv3Key     string
	NotifyURL    string
}

// PaymentConfig 支付渠道配置集合
type PaymentConfig struct {
	Stripe    StripeConfig
	PayPal    PayPalConfig
	Alipay    AlipayConfig
	WeChatPay WeChatPayConfig
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig    // HTTP 服务器配置
	Region    RegionConfig    // 部署区域
	CORS      CORSConfig      // 跨域配置
	Log       LogConfig       // 日志配置
	Supabase  SupabaseConfig  // 海外区后端配置
	CloudBase CloudBaseConfig // 国内区后端配置
	Redis     RedisConfig     // Redis 配置
	Geo       GeoConfig       // 地域路由配置
	JWT       JWTConfig       // JWT 认证配置
	Payment   PaymentConfig   // 支付渠道配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MORNTOOL_
// 例如: MORNTOOL_SERVER_HOST, MORNTOOL_JWT_SECRET
//
// 支付渠道与后端的密钥沿用各平台的惯用变量名（STRIPE_SECRET_KEY、
// ALIPAY_APP_ID 等），便于直接复用现网的密钥配置。
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("morntool")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindCanonicalEnvs()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("server.production", false)
	viper.SetDefault("region.deployment", "CN")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("supabase.dsn", "")
	viper.SetDefault("supabase.storage_endpoint", "")
	viper.SetDefault("supabase.storage_access_key", "")
	viper.SetDefault("supabase.storage_secret_key", "")
	viper.SetDefault("supabase.storage_bucket", "downloads")
	viper.SetDefault("supabase.storage_use_ssl", true)
	viper.SetDefault("cloudbase.env_id", "")
	viper.SetDefault("cloudbase.secret_id", "")
	viper.SetDefault("cloudbase.secret_key", "")
	viper.SetDefault("cloudbase.base_url", "")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("geo.cache_backend", "memory")
	viper.SetDefault("geo.mmdb_path", "")
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "morntool")
	viper.SetDefault("jwt.access_expiry", "1h")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("payment.paypal.sandbox", true)
	viper.SetDefault("payment.alipay.sandbox", true)

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = time.Hour
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MORNTOOL_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:       viper.GetString("server.host"),
			Port:       viper.GetInt("server.port"),
			BaseURL:    strings.TrimRight(viper.GetString("server.base_url"), "/"),
			Production: viper.GetBool("server.production"),
		},
		Region: RegionConfig{
			Deployment: domain.NormalizeDeploymentRegion(viper.GetString("region.deployment")),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
			MaxSizeMB:   viper.GetInt("log.max_size_mb"),
			MaxBackups:  viper.GetInt("log.max_backups"),
			MaxAgeDays:  viper.GetInt("log.max_age_days"),
			Compress:    viper.GetBool("log.compress"),
		},
		Supabase: SupabaseConfig{
			DSN:              viper.GetString("supabase.dsn"),
			StorageEndpoint:  viper.GetString("supabase.storage_endpoint"),
			StorageAccessKey: viper.GetString("supabase.storage_access_key"),
			StorageSecretKey: viper.GetString("supabase.storage_secret_key"),
			StorageBucket:    viper.GetString("supabase.storage_bucket"),
			StorageUseSSL:    viper.GetBool("supabase.storage_use_ssl"),
		},
		CloudBase: CloudBaseConfig{
			EnvID:     viper.GetString("cloudbase.env_id"),
			SecretID:  viper.GetString("cloudbase.secret_id"),
			SecretKey: viper.GetString("cloudbase.secret_key"),
			BaseURL:   viper.GetString("cloudbase.base_url"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Geo: GeoConfig{
			CacheBackend: viper.GetString("geo.cache_backend"),
			MMDBPath:     viper.GetString("geo.mmdb_path"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Payment: PaymentConfig{
			Stripe: StripeConfig{
				SecretKey: viper.GetString("payment.stripe.secret_key"),
			},
			PayPal: PayPalConfig{
				ClientID:     viper.GetString("payment.paypal.client_id"),
				ClientSecret: viper.GetString("payment.paypal.client_secret"),
				Sandbox:      viper.GetBool("payment.paypal.sandbox"),
			},
			Alipay: AlipayConfig{
				AppID:      viper.GetString("payment.alipay.app_id"),
				PrivateKey: viper.GetString("payment.alipay.private_key"),
				PublicKey:  viper.GetString("payment.alipay.public_key"),
				Sandbox:    viper.GetBool("payment.alipay.sandbox"),
				GatewayURL: viper.GetString("payment.alipay.gateway_url"),
			},
			WeChatPay: WeChatPayConfig{
				AppID:        viper.GetString("payment.wechat.app_id"),
				MchID:        viper.GetString("payment.wechat.mch_id"),
				CertSerialNo: viper.GetString("payment.wechat.cert_serial_no"),
				PrivateKey:   viper.GetString("payment.wechat.private_key"),
				APIv3Key:     viper.GetString("payment.wechat.apiv3_key"),
				NotifyURL:    viper.GetString("payment.wechat.notify_url"),
			},
		},
	}

	return cfg, nil
}

// bindCanonicalEnvs 把各平台惯用的环境变量名绑到配置键上
func bindCanonicalEnvs() {
	bindings := map[string]string{
		"region.deployment":             "DEPLOYMENT_REGION",
		"supabase.dsn":                  "SUPABASE_DB_URL",
		"supabase.storage_endpoint":     "SUPABASE_STORAGE_ENDPOINT",
		"supabase.storage_access_key":   "SUPABASE_STORAGE_ACCESS_KEY",
		"supabase.storage_secret_key":   "SUPABASE_STORAGE_SECRET_KEY",
		"supabase.storage_bucket":       "SUPABASE_STORAGE_BUCKET",
		"cloudbase.env_id":              "CLOUDBASE_ENV_ID",
		"cloudbase.secret_id":           "TENCENTCLOUD_SECRET_ID",
		"cloudbase.secret_key":          "TENCENTCLOUD_SECRET_KEY",
		"payment.stripe.secret_key":     "STRIPE_SECRET_KEY",
		"payment.paypal.client_id":      "PAYPAL_CLIENT_ID",
		"payment.paypal.client_secret":  "PAYPAL_CLIENT_SECRET",
		"payment.alipay.app_id":         "ALIPAY_APP_ID",
		"payment.alipay.private_key":    "ALIPAY_PRIVATE_KEY",
		"payment.alipay.public_key":     "ALIPAY_PUBLIC_KEY",
		"payment.alipay.gateway_url":    "ALIPAY_GATEWAY_URL",
		"payment.wechat.app_id":         "WECHAT_PAY_APP_ID",
		"payment.wechat.mch_id":         "WECHAT_PAY_MCH_ID",
		"payment.wechat.cert_serial_no": "WECHAT_PAY_CERT_SERIAL_NO",
		"payment.wechat.private_key":    "WECHAT_PAY_PRIVATE_KEY",
		"payment.wechat.apiv3_key":      "WECHAT_PAY_APIV3_KEY",
		"payment.wechat.notify_url":     "WECHAT_PAY_NOTIFY_URL",
	}
	for key, env := range bindings {
		// viper 的 BindEnv 在 key 合法时不会报错
		_ = viper.BindEnv(key, env)
	}
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
