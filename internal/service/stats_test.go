package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/storage"
)

func newTestStatsService(t *testing.T, cn, intl *fakeRegionalStore) *StatsService {
	t.Helper()
	stores := map[domain.DeploymentRegion]domain.RegionalStore{}
	if cn != nil {
		stores[domain.DeploymentCN] = cn
	}
	if intl != nil {
		stores[domain.DeploymentINTL] = intl
	}
	selector, err := storage.NewSelector(domain.DeploymentCN, stores, zap.NewNop())
	require.NoError(t, err)
	return NewStatsService(selector, zap.NewNop())
}

func TestDashboardMergesRegions(t *testing.T) {
	cn := newFakeRegionalStore(domain.DeploymentCN)
	cn.metrics = domain.BusinessMetrics{TotalUsers: 10, PaidUsers: 2, CompletedOrders: 3, Revenue: 30}
	intl := newFakeRegionalStore(domain.DeploymentINTL)
	intl.metrics = domain.BusinessMetrics{TotalUsers: 20, PaidUsers: 5, CompletedOrders: 7, Revenue: 70}

	ctx := context.Background()
	_, err := cn.CreateUser(ctx, domain.CreateWebUserInput{Email: "cn@example.com"})
	require.NoError(t, err)
	pkg, err := intl.UpsertPackage(ctx, domain.CreateDownloadPackageInput{
		Region: domain.DeploymentINTL, Platform: "macos", IsActive: true,
	})
	require.NoError(t, err)
	_, err = intl.RecordDownloadEvent(ctx, domain.DownloadEventInput{
		PackageID: pkg.ID, Region: domain.DeploymentINTL,
	})
	require.NoError(t, err)

	svc := newTestStatsService(t, cn, intl)
	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(30), stats.Overview.TotalUsers)
	assert.Equal(t, int64(7), stats.Overview.PaidUsers)
	assert.Equal(t, float64(100), stats.Overview.Revenue)
	assert.Equal(t, int64(10), stats.CN.TotalUsers)
	assert.Equal(t, int64(20), stats.INTL.TotalUsers)

	assert.Equal(t, int64(1), stats.Downloads.CNUsers)
	assert.Equal(t, 1, stats.Downloads.INTLPackages)
	assert.Equal(t, int64(1), stats.Downloads.TotalDownloads)
	assert.Equal(t, int64(1), stats.Downloads.TotalUsers)
	assert.Equal(t, 1, stats.Downloads.TotalPackages)
}

func TestDashboardDegradesFailedRegionToZero(t *testing.T) {
	cn := newFakeRegionalStore(domain.DeploymentCN)
	cn.metrics = domain.BusinessMetrics{TotalUsers: 10, Revenue: 30}
	intl := newFakeRegionalStore(domain.DeploymentINTL)
	intl.metrics = domain.BusinessMetrics{TotalUsers: 99, Revenue: 999}
	intl.failMetrics = true

	svc := newTestStatsService(t, cn, intl)
	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	// 失败区域按零值计入，不影响整体
	assert.Equal(t, domain.BusinessMetrics{}, stats.INTL)
	assert.Equal(t, int64(10), stats.Overview.TotalUsers)
	assert.Equal(t, float64(30), stats.Overview.Revenue)
}

func TestDashboardSingleRegion(t *testing.T) {
	cn := newFakeRegionalStore(domain.DeploymentCN)
	cn.metrics = domain.BusinessMetrics{TotalUsers: 5}

	svc := newTestStatsService(t, cn, nil)
	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), stats.Overview.TotalUsers)
	assert.Equal(t, domain.BusinessMetrics{}, stats.INTL)
}

func TestRecentOrdersAndUsersUsePrimary(t *testing.T) {
	cn := newFakeRegionalStore(domain.DeploymentCN)
	ctx := context.Background()
	require.NoError(t, cn.CreateTransaction(ctx, &domain.PaymentTransaction{
		TransactionID: "tx-1", PaymentMethod: "alipay", Status: domain.PaymentPending,
	}))
	_, err := cn.CreateUser(ctx, domain.CreateWebUserInput{Email: "cn@example.com"})
	require.NoError(t, err)

	svc := newTestStatsService(t, cn, nil)

	orders, err := svc.RecentOrders(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	users, err := svc.Users(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
