package supabase

import (
	"time"

	"morntool/backend/internal/domain"
)

// webUser 用户表，沿用线上 Supabase 的表名
type webUser struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)"`
	Email          string     `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string     `gorm:"size:255"`
	Nickname       string     `gorm:"size:100"`
	Credits        int64      `gorm:"not null;default:0"`
	MembershipTier string     `gorm:"size:32;default:free"`
	MemberUntil    *time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (webUser) TableName() string { return "user" }

func (m *webUser) toDomain() *domain.WebUser {
	return &domain.WebUser{
		ID:             m.ID,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		Nickname:       m.Nickname,
		Credits:        m.Credits,
		MembershipTier: m.MembershipTier,
		MemberUntil:    m.MemberUntil,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// paymentTransaction 支付交易表
type paymentTransaction struct {
	ID            string  `gorm:"primaryKey;type:varchar(36)"`
	UserID        string  `gorm:"index;size:36"`
	UserEmail     string  `gorm:"index;size:255"`
	PlanID        string  `gorm:"size:32"`
	BillingCycle  string  `gorm:"size:16"`
	CreditAmount  int64
	AmountUSD     float64
	AmountCNY     float64
	PaymentMethod string `gorm:"size:32"`
	TransactionID string `gorm:"uniqueIndex;size:128"`
	Status        string `gorm:"index;size:16"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (paymentTransaction) TableName() string { return "payment_transactions" }

func (m *paymentTransaction) toDomain() *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		ID:            m.ID,
		UserID:        m.UserID,
		UserEmail:     m.UserEmail,
		PlanID:        m.PlanID,
		BillingCycle:  domain.BillingCycle(m.BillingCycle),
		CreditAmount:  m.CreditAmount,
		AmountUSD:     m.AmountUSD,
		AmountCNY:     m.AmountCNY,
		PaymentMethod: m.PaymentMethod,
		TransactionID: m.TransactionID,
		Status:        domain.PaymentStatus(m.Status),
		Region:        domain.DeploymentINTL,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func fromTransaction(tx *domain.PaymentTransaction) *paymentTransaction {
	return &paymentTransaction{
		ID:            tx.ID,
		UserID:        tx.UserID,
		UserEmail:     tx.UserEmail,
		PlanID:        tx.PlanID,
		BillingCycle:  string(tx.BillingCycle),
		CreditAmount:  tx.CreditAmount,
		AmountUSD:     tx.AmountUSD,
		AmountCNY:     tx.AmountCNY,
		PaymentMethod: tx.PaymentMethod,
		TransactionID: tx.TransactionID,
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
}

// downloadPackage 安装包表，(region, platform) 唯一
type downloadPackage struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	Region          string `gorm:"size:8;uniqueIndex:idx_region_platform"`
	Platform        string `gorm:"size:32;uniqueIndex:idx_region_platform"`
	Version         string `gorm:"size:32"`
	Title           string `gorm:"size:255"`
	FileName        string `gorm:"size:255"`
	FileSize        int64
	MimeType        string `gorm:"size:128"`
	ReleaseNotes    string `gorm:"type:text"`
	IsActive        bool   `gorm:"index"`
	DownloadCount   int64  `gorm:"not null;default:0"`
	StorageProvider string `gorm:"size:16"`
	StoragePath     string `gorm:"size:512"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (downloadPackage) TableName() string { return "download_packages" }

func (m *downloadPackage) toDomain() *domain.DownloadPackageRecord {
	return &domain.DownloadPackageRecord{
		ID:              m.ID,
		Region:          domain.DeploymentRegion(m.Region),
		Platform:        m.Platform,
		Version:         m.Version,
		Title:           m.Title,
		FileName:        m.FileName,
		FileSize:        m.FileSize,
		MimeType:        m.MimeType,
		ReleaseNotes:    m.ReleaseNotes,
		IsActive:        m.IsActive,
		DownloadCount:   m.DownloadCount,
		StorageProvider: domain.DatabaseBackend(m.StorageProvider),
		StoragePath:     m.StoragePath,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// downloadEvent 下载事件表
type downloadEvent struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Region    string `gorm:"size:8"`
	PackageID string `gorm:"index;size:36"`
	UserID    string `gorm:"size:36"`
	UserEmail string `gorm:"size:255"`
	IP        string `gorm:"size:64"`
	UserAgent string `gorm:"size:512"`
	CreatedAt time.Time
}

func (downloadEvent) TableName() string { return "download_events" }

func (m *downloadEvent) toDomain() *domain.DownloadEventRecord {
	return &domain.DownloadEventRecord{
		ID:        m.ID,
		Region:    domain.DeploymentRegion(m.Region),
		PackageID: m.PackageID,
		UserEmail: m.UserEmail,
		IP:        m.IP,
		CreatedAt: m.CreatedAt,
	}
}
