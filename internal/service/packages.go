package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"morntool/backend/internal/domain"
)

// PackageService 安装包管理：文件先落对象存储，元数据再落库。
type PackageService struct {
	store domain.RegionalStore
	log   *zap.Logger
}

// NewPackageService 创建安装包服务
func NewPackageService(store domain.RegionalStore, log *zap.Logger) *PackageService {
	return &PackageService{store: store, log: log}
}

// UploadInput 上传安装包的入参
type UploadInput struct {
	Platform     string
	Version      string
	Title        string
	FileName     string
	FileSize     int64
	MimeType     string
	ReleaseNotes string
	IsActive     bool
	Body         io.Reader
}

// Upload 上传文件并按 (region, platform) 覆盖写入元数据
func (s *PackageService) Upload(ctx context.Context, input UploadInput) (*domain.DownloadPackageRecord, error) {
	if input.Platform == "" || input.FileName == "" {
		return nil, fmt.Errorf("platform and fileName are required")
	}

	storagePath := s.storagePath(input.Platform, input.FileName)
	if err := s.store.UploadObject(ctx, storagePath, input.Body, input.FileSize, input.MimeType); err != nil {
		return nil, fmt.Errorf("failed to upload package file: %w", err)
	}

	record, err := s.store.UpsertPackage(ctx, domain.CreateDownloadPackageInput{
		Region:       s.store.Region(),
		Platform:     strings.ToLower(input.Platform),
		Version:      input.Version,
		Title:        input.Title,
		FileName:     input.FileName,
		FileSize:     input.FileSize,
		MimeType:     input.MimeType,
		ReleaseNotes: input.ReleaseNotes,
		IsActive:     input.IsActive,
		StoragePath:  storagePath,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("安装包已更新",
		zap.String("platform", record.Platform),
		zap.String("version", record.Version),
		zap.String("path", storagePath))
	return record, nil
}

// List 全部安装包
func (s *PackageService) List(ctx context.Context) ([]domain.DownloadPackageRecord, error) {
	return s.store.ListPackages(ctx)
}

// Delete 删除安装包。先删存储文件再删记录，
// 文件删除失败只告警，避免残留元数据指向已失效的入口。
func (s *PackageService) Delete(ctx context.Context, id string) error {
	record, err := s.store.GetPackage(ctx, id)
	if err != nil {
		return err
	}

	if record.StoragePath != "" {
		if err := s.store.DeleteObject(ctx, record.StoragePath); err != nil {
			s.log.Warn("安装包文件删除失败，继续删除记录",
				zap.String("path", record.StoragePath),
				zap.Error(err))
		}
	}
	return s.store.DeletePackage(ctx, id)
}

// SetActive 上下架安装包。覆盖写入保留下载计数。
func (s *PackageService) SetActive(ctx context.Context, id string, active bool) (*domain.DownloadPackageRecord, error) {
	record, err := s.store.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.store.UpsertPackage(ctx, domain.CreateDownloadPackageInput{
		Region:       record.Region,
		Platform:     record.Platform,
		Version:      record.Version,
		Title:        record.Title,
		FileName:     record.FileName,
		FileSize:     record.FileSize,
		MimeType:     record.MimeType,
		ReleaseNotes: record.ReleaseNotes,
		IsActive:     active,
		StoragePath:  record.StoragePath,
	})
}

// DownloadInput 请求下载的入参
type DownloadInput struct {
	Platform  string
	UserID    string
	UserEmail string
	IP        string
	UserAgent string
}

// DownloadGrant 一次放行的下载
type DownloadGrant struct {
	Package *domain.DownloadPackageRecord `json:"package"`
	URL     string                        `json:"url"`
}

// Download 返回该平台最新活跃包的短时效直链并记录事件
func (s *PackageService) Download(ctx context.Context, input DownloadInput) (*DownloadGrant, error) {
	record, err := s.store.GetActivePackage(ctx, strings.ToLower(input.Platform))
	if err != nil {
		return nil, err
	}

	url, err := s.store.SignedDownloadURL(ctx, record.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to sign download url: %w", err)
	}

	if _, err := s.store.RecordDownloadEvent(ctx, domain.DownloadEventInput{
		PackageID: record.ID,
		Region:    s.store.Region(),
		UserID:    input.UserID,
		UserEmail: input.UserEmail,
		IP:        input.IP,
		UserAgent: input.UserAgent,
	}); err != nil {
		// 事件只影响统计，不打断下载
		s.log.Warn("下载事件记录失败", zap.String("package", record.ID), zap.Error(err))
	}

	return &DownloadGrant{Package: record, URL: url}, nil
}

// DownloadByID 按记录 ID 下载，仅放行活跃包
func (s *PackageService) DownloadByID(ctx context.Context, id string, input DownloadInput) (*DownloadGrant, error) {
	record, err := s.store.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, domain.ErrNotFound
	}

	url, err := s.store.SignedDownloadURL(ctx, record.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to sign download url: %w", err)
	}

	if _, err := s.store.RecordDownloadEvent(ctx, domain.DownloadEventInput{
		PackageID: record.ID,
		Region:    s.store.Region(),
		UserID:    input.UserID,
		UserEmail: input.UserEmail,
		IP:        input.IP,
		UserAgent: input.UserAgent,
	}); err != nil {
		s.log.Warn("下载事件记录失败", zap.String("package", record.ID), zap.Error(err))
	}

	return &DownloadGrant{Package: record, URL: url}, nil
}

// storagePath 对象存储路径，带时间戳避免 CDN 缓存旧包
func (s *PackageService) storagePath(platform, fileName string) string {
	return path.Join("packages", strings.ToLower(platform),
		fmt.Sprintf("%d-%s", time.Now().Unix(), fileName))
}
