package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"morntool/backend/internal/domain"
)

// ErrObjectStorageDisabled 未配置对象存储时文件操作返回该错误
var ErrObjectStorageDisabled = errors.New("object storage not configured")

// Store 海外区存储实现，数据走 Supabase Postgres，文件走 S3 兼容接口
type Store struct {
	db      *gorm.DB
	objects domain.ObjectStore
}

// NewStore 连接 Supabase Postgres
func NewStore(dsn string, objects domain.ObjectStore) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn), objects)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, objects domain.ObjectStore) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	store := &Store{db: db, objects: objects}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&webUser{},
		&paymentTransaction{},
		&downloadPackage{},
		&downloadEvent{},
	)
}

// Region 所属部署区域
func (s *Store) Region() domain.DeploymentRegion { return domain.DeploymentINTL }

// Backend 物理后端类型
func (s *Store) Backend() domain.DatabaseBackend { return domain.BackendSupabase }

// ========== Package Repository ==========

// UpsertPackage 按 (region, platform) 去重写入，保留已有的下载计数
func (s *Store) UpsertPackage(ctx context.Context, input domain.CreateDownloadPackageInput) (*domain.DownloadPackageRecord, error) {
	var existing downloadPackage
	err := s.db.WithContext(ctx).
		Where("region = ? AND platform = ?", string(input.Region), input.Platform).
		Order("created_at DESC").
		First(&existing).Error

	switch {
	case err == nil:
		existing.Version = input.Version
		existing.Title = input.Title
		existing.FileName = input.FileName
		existing.FileSize = input.FileSize
		existing.MimeType = input.MimeType
		existing.ReleaseNotes = input.ReleaseNotes
		existing.IsActive = input.IsActive
		existing.StoragePath = input.StoragePath
		existing.StorageProvider = string(domain.BackendSupabase)
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return existing.toDomain(), nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		record := downloadPackage{
			ID:              uuid.NewString(),
			Region:          string(input.Region),
			Platform:        input.Platform,
			Version:         input.Version,
			Title:           input.Title,
			FileName:        input.FileName,
			FileSize:        input.FileSize,
			MimeType:        input.MimeType,
			ReleaseNotes:    input.ReleaseNotes,
			IsActive:        input.IsActive,
			StorageProvider: string(domain.BackendSupabase),
			StoragePath:     input.StoragePath,
		}
		if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
			return nil, err
		}
		return record.toDomain(), nil

	default:
		return nil, err
	}
}

// GetPackage 按 ID 查询
func (s *Store) GetPackage(ctx context.Context, id string) (*domain.DownloadPackageRecord, error) {
	var record downloadPackage
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.toDomain(), nil
}

// GetActivePackage 返回该平台最新的活跃记录
func (s *Store) GetActivePackage(ctx context.Context, platform string) (*domain.DownloadPackageRecord, error) {
	var record downloadPackage
	err := s.db.WithContext(ctx).
		Where("platform = ? AND is_active = ?", platform, true).
		Order("updated_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.toDomain(), nil
}

// ListPackages 列出全部安装包，新的在前
func (s *Store) ListPackages(ctx context.Context) ([]domain.DownloadPackageRecord, error) {
	var models []downloadPackage
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.DownloadPackageRecord, 0, len(models))
	for i := range models {
		records = append(records, *models[i].toDomain())
	}
	return records, nil
}

// DeletePackage 删除安装包记录
func (s *Store) DeletePackage(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&downloadPackage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordDownloadEvent 写入事件并把对应包的下载计数 +1
func (s *Store) RecordDownloadEvent(ctx context.Context, input domain.DownloadEventInput) (*domain.DownloadEventRecord, error) {
	event := downloadEvent{
		ID:        uuid.NewString(),
		Region:    string(input.Region),
		PackageID: input.PackageID,
		UserID:    input.UserID,
		UserEmail: input.UserEmail,
		IP:        input.IP,
		UserAgent: input.UserAgent,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Model(&downloadPackage{}).
		Where("id = ?", input.PackageID).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
	if err != nil {
		return nil, err
	}
	return event.toDomain(), nil
}

// CountDownloadEvents 下载事件总数
func (s *Store) CountDownloadEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&downloadEvent{}).Count(&count).Error
	return count, err
}

// ========== Payment Repository ==========

// CreateTransaction 写入一条支付交易
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	model := fromTransaction(tx)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	tx.ID = model.ID
	return nil
}

// GetTransaction 按渠道交易号查询
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.PaymentTransaction, error) {
	var model paymentTransaction
	err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// UpdateTransactionStatus 更新交易状态
func (s *Store) UpdateTransactionStatus(ctx context.Context, transactionID string, status domain.PaymentStatus) error {
	result := s.db.WithContext(ctx).Model(&paymentTransaction{}).
		Where("transaction_id = ?", transactionID).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecentOrders 管理后台最近订单
func (s *Store) ListRecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	var models []paymentTransaction
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}
	orders := make([]domain.OrderSummary, 0, len(models))
	for i := range models {
		orders = append(orders, domain.OrderSummary{
			ID:        models[i].ID,
			Region:    domain.DeploymentINTL,
			Method:    models[i].PaymentMethod,
			Status:    models[i].Status,
			Amount:    models[i].AmountUSD,
			Currency:  "USD",
			UserEmail: models[i].UserEmail,
			CreatedAt: models[i].CreatedAt,
		})
	}
	return orders, nil
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, input domain.CreateWebUserInput) (*domain.WebUser, error) {
	model := webUser{
		ID:             uuid.NewString(),
		Email:          input.Email,
		PasswordHash:   input.PasswordHash,
		Nickname:       input.Nickname,
		Credits:        input.Credits,
		MembershipTier: input.TierOrFree(),
	}
	err := s.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		var existing webUser
		if lookupErr := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; lookupErr == nil {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// GetUserByEmail 按邮箱查询用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.WebUser, error) {
	var model webUser
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// ListUsers 管理后台用户列表
func (s *Store) ListUsers(ctx context.Context, limit int) ([]domain.AdminUserSummary, error) {
	var models []webUser
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}
	users := make([]domain.AdminUserSummary, 0, len(models))
	for i := range models {
		users = append(users, domain.AdminUserSummary{
			ID:             models[i].ID,
			Email:          models[i].Email,
			Nickname:       models[i].Nickname,
			Credits:        models[i].Credits,
			MembershipTier: models[i].MembershipTier,
			MemberUntil:    models[i].MemberUntil,
			Region:         string(domain.DeploymentINTL),
			CreatedAt:      models[i].CreatedAt,
		})
	}
	return users, nil
}

// CountUsers 用户总数
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&webUser{}).Count(&count).Error
	return count, err
}

// ========== Metrics Repository ==========

// BusinessMetrics 管理后台经营指标
func (s *Store) BusinessMetrics(ctx context.Context) (*domain.BusinessMetrics, error) {
	db := s.db.WithContext(ctx)
	metrics := &domain.BusinessMetrics{}

	if err := db.Model(&webUser{}).Count(&metrics.TotalUsers).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := db.Model(&webUser{}).
		Where("member_until > ?", now).
		Count(&metrics.ActiveMembers).Error; err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := db.Model(&webUser{}).
		Where("created_at >= ?", today).
		Count(&metrics.TodayNewUsers).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&paymentTransaction{}).
		Where("status = ?", string(domain.PaymentCompleted)).
		Count(&metrics.CompletedOrders).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&paymentTransaction{}).
		Where("status = ?", string(domain.PaymentCompleted)).
		Distinct("user_email").
		Count(&metrics.PaidUsers).Error; err != nil {
		return nil, err
	}

	var revenue struct{ Total float64 }
	if err := db.Model(&paymentTransaction{}).
		Select("COALESCE(SUM(amount_usd), 0) AS total").
		Where("status = ?", string(domain.PaymentCompleted)).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	metrics.Revenue = revenue.Total

	return metrics, nil
}

// ========== Object Storage ==========

// UploadObject 上传安装包文件
func (s *Store) UploadObject(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error {
	if s.objects == nil {
		return ErrObjectStorageDisabled
	}
	return s.objects.UploadObject(ctx, path, reader, size, contentType)
}

// SignedDownloadURL 生成短时效下载链接
func (s *Store) SignedDownloadURL(ctx context.Context, path string) (string, error) {
	if s.objects == nil {
		return "", ErrObjectStorageDisabled
	}
	return s.objects.SignedDownloadURL(ctx, path)
}

// DeleteObject 删除安装包文件
func (s *Store) DeleteObject(ctx context.Context, path string) error {
	if s.objects == nil {
		return ErrObjectStorageDisabled
	}
	return s.objects.DeleteObject(ctx, path)
}

// Health 探活
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
