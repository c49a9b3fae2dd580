package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/storage"
)

// statsTimeout 单次统计聚合的总超时
const statsTimeout = 10 * time.Second

// StatsService 管理后台跨区统计。
// 两个区域并行拉取，某个区域失败时该区按零值计入，总览不报错。
type StatsService struct {
	stores *storage.Selector
	log    *zap.Logger
}

// NewStatsService 创建统计服务
func NewStatsService(stores *storage.Selector, log *zap.Logger) *StatsService {
	return &StatsService{stores: stores, log: log}
}

// regionSnapshot 单区域一次拉取的全部数据
type regionSnapshot struct {
	metrics   domain.BusinessMetrics
	users     int64
	packages  int
	downloads int64
}

// Dashboard 聚合总览数据
func (s *StatsService) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	snapshots := make(map[domain.DeploymentRegion]*regionSnapshot)
	g, gctx := errgroup.WithContext(ctx)

	for _, region := range s.stores.Regions() {
		region := region
		store, _ := s.stores.ForRegion(region)
		snapshot := &regionSnapshot{}
		snapshots[region] = snapshot

		g.Go(func() error {
			// 区域失败降级为零值，不中断整体聚合
			if metrics, err := store.BusinessMetrics(gctx); err != nil {
				s.log.Warn("区域指标拉取失败", zap.String("region", string(region)), zap.Error(err))
			} else {
				snapshot.metrics = *metrics
			}
			if users, err := store.CountUsers(gctx); err != nil {
				s.log.Warn("区域用户数拉取失败", zap.String("region", string(region)), zap.Error(err))
			} else {
				snapshot.users = users
			}
			if packages, err := store.ListPackages(gctx); err != nil {
				s.log.Warn("区域安装包拉取失败", zap.String("region", string(region)), zap.Error(err))
			} else {
				snapshot.packages = len(packages)
			}
			if downloads, err := store.CountDownloadEvents(gctx); err != nil {
				s.log.Warn("区域下载数拉取失败", zap.String("region", string(region)), zap.Error(err))
			} else {
				snapshot.downloads = downloads
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := &domain.DashboardStats{}
	if snapshot, ok := snapshots[domain.DeploymentCN]; ok {
		stats.CN = snapshot.metrics
		stats.Downloads.CNUsers = snapshot.users
		stats.Downloads.CNPackages = snapshot.packages
		stats.Downloads.TotalDownloads += snapshot.downloads
	}
	if snapshot, ok := snapshots[domain.DeploymentINTL]; ok {
		stats.INTL = snapshot.metrics
		stats.Downloads.INTLUsers = snapshot.users
		stats.Downloads.INTLPackages = snapshot.packages
		stats.Downloads.TotalDownloads += snapshot.downloads
	}

	stats.Overview.Add(stats.CN)
	stats.Overview.Add(stats.INTL)
	stats.Downloads.TotalUsers = stats.Downloads.CNUsers + stats.Downloads.INTLUsers
	stats.Downloads.TotalPackages = stats.Downloads.CNPackages + stats.Downloads.INTLPackages

	return stats, nil
}

// RecentOrders 主区域最近订单
func (s *StatsService) RecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.stores.Primary().ListRecentOrders(ctx, limit)
}

// Users 主区域用户列表
func (s *StatsService) Users(ctx context.Context, limit int) ([]domain.AdminUserSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.stores.Primary().ListUsers(ctx, limit)
}
