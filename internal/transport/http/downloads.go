package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/monitoring"
	"morntool/backend/internal/service"
)

// DownloadHandler 面向用户的安装包下载接口，只操作本部署区域的后端
type DownloadHandler struct {
	packages *service.PackageService
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewDownloadHandler 创建下载处理器
func NewDownloadHandler(packages *service.PackageService, metrics *monitoring.Metrics, log *zap.Logger) *DownloadHandler {
	return &DownloadHandler{packages: packages, metrics: metrics, log: log}
}

// List 本区域当前活跃的安装包列表
// GET /api/downloads
func (h *DownloadHandler) List(c *gin.Context) {
	records, err := h.packages.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	active := make([]domain.DownloadPackageRecord, 0, len(records))
	for _, record := range records {
		if record.IsActive {
			active = append(active, record)
		}
	}
	Success(c, gin.H{"packages": active})
}

// Download 放行一次下载：记录事件并返回短时效直链
// POST /api/downloads/:id/download
func (h *DownloadHandler) Download(c *gin.Context) {
	input := service.DownloadInput{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if userID, ok := c.Get("userID"); ok {
		input.UserID = userID.(string)
	}
	if email, ok := c.Get("email"); ok {
		input.UserEmail = email.(string)
	}

	grant, err := h.packages.DownloadByID(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		writeError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDownload(grant.Package.Platform, string(grant.Package.Region))
	}
	Success(c, grant)
}
