package httptransport

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/service"
)

// AdminHandler 管理后台接口。安装包操作按 region 参数路由到对应区域的后端，
// 统计类接口由服务层自行合并两区数据。
type AdminHandler struct {
	stats    *service.StatsService
	packages map[domain.DeploymentRegion]*service.PackageService
	log      *zap.Logger
}

// NewAdminHandler 创建管理后台处理器
func NewAdminHandler(stats *service.StatsService, packages map[domain.DeploymentRegion]*service.PackageService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{stats: stats, packages: packages, log: log}
}

// Stats 经营仪表盘，单区故障时对应分区降级为零值
// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"stats": stats})
}

// Orders 最近订单
// GET /api/admin/orders
func (h *AdminHandler) Orders(c *gin.Context) {
	orders, err := h.stats.RecentOrders(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"orders": orders})
}

// Users 用户列表
// GET /api/admin/users
func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.stats.Users(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"users": users})
}

// UploadPackage 上传安装包到指定区域
// POST /api/admin/packages  (multipart)
func (h *AdminHandler) UploadPackage(c *gin.Context) {
	svc, ok := h.regionService(c.PostForm("region"))
	if !ok {
		BadRequest(c, "region 参数必须是 CN 或 INTL")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少安装包文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	defer file.Close()

	record, err := svc.Upload(c.Request.Context(), service.UploadInput{
		Platform:     c.PostForm("platform"),
		Version:      c.PostForm("version"),
		Title:        c.PostForm("title"),
		FileName:     fileHeader.Filename,
		FileSize:     fileHeader.Size,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		ReleaseNotes: c.PostForm("releaseNotes"),
		IsActive:     c.PostForm("isActive") != "false",
		Body:         file,
	})
	if err != nil {
		h.log.Error("安装包上传失败",
			zap.String("platform", c.PostForm("platform")),
			zap.Error(err))
		BadRequest(c, err.Error())
		return
	}
	Created(c, record)
}

// ListPackages 两个区域的安装包合并列表，单区失败只告警
// GET /api/admin/packages
func (h *AdminHandler) ListPackages(c *gin.Context) {
	merged := make([]domain.DownloadPackageRecord, 0)
	for region, svc := range h.packages {
		records, err := svc.List(c.Request.Context())
		if err != nil {
			h.log.Warn("区域安装包列表拉取失败",
				zap.String("region", string(region)),
				zap.Error(err))
			continue
		}
		merged = append(merged, records...)
	}
	Success(c, gin.H{"packages": merged})
}

// PatchPackage 上下架安装包
// PATCH /api/admin/packages/:id
func (h *AdminHandler) PatchPackage(c *gin.Context) {
	var input struct {
		Region   string `json:"region" binding:"required"`
		IsActive bool   `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	svc, ok := h.regionService(input.Region)
	if !ok {
		BadRequest(c, "region 参数必须是 CN 或 INTL")
		return
	}

	record, err := svc.SetActive(c.Request.Context(), c.Param("id"), input.IsActive)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, record)
}

// DeletePackage 删除安装包及底层文件
// DELETE /api/admin/packages/:id?region=
func (h *AdminHandler) DeletePackage(c *gin.Context) {
	svc, ok := h.regionService(c.Query("region"))
	if !ok {
		BadRequest(c, "region 参数必须是 CN 或 INTL")
		return
	}

	if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"success": true})
}

// regionService 按 region 参数选择区域后端
func (h *AdminHandler) regionService(region string) (*service.PackageService, bool) {
	svc, ok := h.packages[domain.DeploymentRegion(strings.ToUpper(strings.TrimSpace(region)))]
	return svc, ok
}

// queryInt 解析 limit 类查询参数，非法值交给服务层钳制
func queryInt(c *gin.Context, name string) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return value
}
