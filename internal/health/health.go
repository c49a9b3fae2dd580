package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"morntool/backend/internal/storage"
)

const checkTimeout = 5 * time.Second

// HealthChecker 健康检查器。存活探针恒真，就绪探针逐区探测数据后端。
type HealthChecker struct {
	health healthcheck.Handler
	stores *storage.Selector
	log    *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(stores *storage.Selector, log *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		stores: stores,
		log:    log,
	}
	hc.addChecks()
	return hc
}

// addChecks 注册每个区域后端的就绪检查
func (hc *HealthChecker) addChecks() {
	for _, region := range hc.stores.Regions() {
		region := region
		hc.health.AddReadinessCheck("store-"+string(region), func() error {
			store, ok := hc.stores.ForRegion(region)
			if !ok {
				return fmt.Errorf("region %s not configured", region)
			}
			ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
			defer cancel()
			return store.Health(ctx)
		})
	}
}

// LiveHandler 存活探针
func (hc *HealthChecker) LiveHandler() http.Handler {
	return http.HandlerFunc(hc.health.LiveEndpoint)
}

// ReadyHandler 就绪探针
func (hc *HealthChecker) ReadyHandler() http.Handler {
	return http.HandlerFunc(hc.health.ReadyEndpoint)
}

// CheckHealth 各区域后端的状态快照，用于启动自检日志
func (hc *HealthChecker) CheckHealth(ctx context.Context) map[string]string {
	results := make(map[string]string)
	for _, region := range hc.stores.Regions() {
		store, ok := hc.stores.ForRegion(region)
		if !ok {
			results[string(region)] = "ERROR: not configured"
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := store.Health(checkCtx)
		cancel()
		if err != nil {
			results[string(region)] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results[string(region)] = "OK"
		}
	}
	return results
}
