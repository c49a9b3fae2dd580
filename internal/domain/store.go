package domain

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists 唯一约束冲突
	ErrAlreadyExists = errors.New("record already exists")
)

// PackageStore 安装包与下载事件的持久化
type PackageStore interface {
	// UpsertPackage 按 (region, platform) 去重：已存在则覆盖字段并保留下载计数
	UpsertPackage(ctx context.Context, input CreateDownloadPackageInput) (*DownloadPackageRecord, error)
	GetPackage(ctx context.Context, id string) (*DownloadPackageRecord, error)
	// GetActivePackage 返回该平台最新的活跃记录
	GetActivePackage(ctx context.Context, platform string) (*DownloadPackageRecord, error)
	ListPackages(ctx context.Context) ([]DownloadPackageRecord, error)
	DeletePackage(ctx context.Context, id string) error
	// RecordDownloadEvent 写入事件并把对应包的下载计数 +1
	RecordDownloadEvent(ctx context.Context, input DownloadEventInput) (*DownloadEventRecord, error)
	CountDownloadEvents(ctx context.Context) (int64, error)
}

// PaymentStore 支付交易的持久化
type PaymentStore interface {
	CreateTransaction(ctx context.Context, tx *PaymentTransaction) error
	GetTransaction(ctx context.Context, transactionID string) (*PaymentTransaction, error)
	UpdateTransactionStatus(ctx context.Context, transactionID string, status PaymentStatus) error
	ListRecentOrders(ctx context.Context, limit int) ([]OrderSummary, error)
}

// UserStore 用户数据的持久化
type UserStore interface {
	CreateUser(ctx context.Context, input CreateWebUserInput) (*WebUser, error)
	GetUserByEmail(ctx context.Context, email string) (*WebUser, error)
	ListUsers(ctx context.Context, limit int) ([]AdminUserSummary, error)
	CountUsers(ctx context.Context) (int64, error)
}

// MetricsStore 管理后台经营指标的聚合查询
type MetricsStore interface {
	BusinessMetrics(ctx context.Context) (*BusinessMetrics, error)
}

// ObjectStore 安装包文件的对象存储
type ObjectStore interface {
	UploadObject(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error
	// SignedDownloadURL 生成短时效下载链接
	SignedDownloadURL(ctx context.Context, path string) (string, error)
	DeleteObject(ctx context.Context, path string) error
}

// RegionalStore 单个部署区域的完整后端。
// CN 区由 CloudBase 实现，INTL 区由 Supabase(Postgres+S3) 实现。
type RegionalStore interface {
	PackageStore
	PaymentStore
	UserStore
	MetricsStore
	ObjectStore

	Region() DeploymentRegion
	Backend() DatabaseBackend
	Health(ctx context.Context) error
	Close() error
}
