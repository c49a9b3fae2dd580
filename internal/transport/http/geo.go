package httptransport

import (
	"context"

	"github.com/gin-gonic/gin"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/monitoring"
)

// GeoDetector 按客户端 IP 解析区域
type GeoDetector interface {
	Detect(ctx context.Context, ip string) domain.GeoResult
}

// GeoHandler 前端启动时拉取区域配置的接口
type GeoHandler struct {
	geo     GeoDetector
	metrics *monitoring.Metrics
}

// NewGeoHandler 创建地域处理器
func NewGeoHandler(geo GeoDetector, metrics *monitoring.Metrics) *GeoHandler {
	return &GeoHandler{geo: geo, metrics: metrics}
}

// Detect 解析客户端区域，解析失败内部已兜底为默认区域
// GET /api/geo
func (h *GeoHandler) Detect(c *gin.Context) {
	result := h.geo.Detect(c.Request.Context(), c.ClientIP())
	if h.metrics != nil {
		h.metrics.RecordGeoLookup(string(result.Region))
	}
	Success(c, result)
}
