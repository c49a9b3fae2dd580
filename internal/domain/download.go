package domain

import "time"

// DownloadPackageRecord 可下载的安装包记录。
// 不变量：每个 (region, platform) 组合最多存在一条活跃记录，
// 重复上传同一组合时更新已有记录而不是插入新行。
type DownloadPackageRecord struct {
	ID              string           `json:"id"`
	Region          DeploymentRegion `json:"region"`
	Platform        string           `json:"platform"`
	Version         string           `json:"version"`
	Title           string           `json:"title"`
	FileName        string           `json:"fileName"`
	FileSize        int64            `json:"fileSize"`
	MimeType        string           `json:"mimeType"`
	ReleaseNotes    string           `json:"releaseNotes,omitempty"`
	IsActive        bool             `json:"isActive"`
	DownloadCount   int64            `json:"downloadCount"`
	StorageProvider DatabaseBackend  `json:"storageProvider"`
	StoragePath     string           `json:"storagePath"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// CreateDownloadPackageInput 创建/更新安装包的输入
type CreateDownloadPackageInput struct {
	Region       DeploymentRegion
	Platform     string
	Version      string
	Title        string
	FileName     string
	FileSize     int64
	MimeType     string
	ReleaseNotes string
	IsActive     bool
	StoragePath  string
}

// DownloadEventInput 一次下载事件的输入
type DownloadEventInput struct {
	PackageID string
	Region    DeploymentRegion
	UserID    string
	UserEmail string
	IP        string
	UserAgent string
}

// DownloadEventRecord 已记录的下载事件
type DownloadEventRecord struct {
	ID        string           `json:"id"`
	Region    DeploymentRegion `json:"region"`
	PackageID string           `json:"packageId"`
	UserEmail string           `json:"userEmail"`
	IP        string           `json:"ip"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DownloadStatsSummary 下载侧统计汇总（两个区域合并后的视图）
type DownloadStatsSummary struct {
	TotalUsers     int64 `json:"totalUsers"`
	CNUsers        int64 `json:"cnUsers"`
	INTLUsers      int64 `json:"intlUsers"`
	TotalDownloads int64 `json:"totalDownloads"`
	TotalPackages  int   `json:"totalPackages"`
	CNPackages     int   `json:"cnPackages"`
	INTLPackages   int   `json:"intlPackages"`
}
