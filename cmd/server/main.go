package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"morntool/backend/internal/cache"
	"morntool/backend/internal/config"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/georouter"
	"morntool/backend/internal/health"
	"morntool/backend/internal/logger"
	"morntool/backend/internal/middleware"
	"morntool/backend/internal/monitoring"
	"morntool/backend/internal/payment"
	"morntool/backend/internal/resilience"
	"morntool/backend/internal/security"
	"morntool/backend/internal/service"
	"morntool/backend/internal/storage"
	httptransport "morntool/backend/internal/transport/http"
)

const version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting morntool server",
		zap.String("version", version),
		zap.String("region", string(cfg.Region.Deployment)),
		zap.Bool("production", cfg.Server.Production),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 错误恢复追踪器：地域解析和支付渠道的降级状态都汇聚到这里
	recovery := resilience.NewRecovery()

	// 地域解析的结果缓存
	geoCache, err := buildGeoCache(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize geo cache", zap.Error(err))
	}
	geoRouter := georouter.New(georouter.Options{
		Cache:    geoCache,
		MMDBPath: cfg.Geo.MMDBPath,
	}, recovery, log)
	defer geoRouter.Close()

	// 区域数据后端
	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize regional stores", zap.Error(err))
	}
	defer stores.Close()

	// 安全组件
	lockout := security.NewLockout(security.DefaultLockoutPolicy(), log)
	defer lockout.Close()
	csrf := security.NewCSRF(cfg.Server.Production, log)

	// 服务层
	authService := service.NewAuthService(stores.Primary(), lockout, cfg.JWT, log)
	statsService := service.NewStatsService(stores, log)
	packageServices := make(map[domain.DeploymentRegion]*service.PackageService)
	for _, region := range stores.Regions() {
		store, _ := stores.ForRegion(region)
		packageServices[region] = service.NewPackageService(store, log)
	}
	orchestrator := payment.NewOrchestrator(cfg, stores.Primary(), recovery, log)

	// 监控
	metrics := monitoring.NewMetrics()
	watcher := monitoring.NewDegradationWatcher(recovery, metrics, []string{
		"geo-detection",
		"payment-stripe", "payment-paypal", "payment-alipay", "payment-wechatpay",
	}, log)
	watcher.Start(ctx)
	defer watcher.Close()

	healthChecker := health.NewHealthChecker(stores, log)
	log.Info("startup health check", zap.Any("stores", healthChecker.CheckHealth(ctx)))

	// 登录和下单接口的限流
	authLimiter := middleware.NewRateLimiter(1, 10, metrics, log)
	defer authLimiter.Close()

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		Log:          log,
		Metrics:      metrics,
		Auth:         authService,
		Stats:        statsService,
		Packages:     packageServices,
		Payments:     orchestrator,
		Geo:          geoRouter,
		CSRF:         csrf,
		LiveHandler:  healthChecker.LiveHandler(),
		ReadyHandler: healthChecker.ReadyHandler(),
		AuthLimiter:  authLimiter,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// buildGeoCache 按配置选择地域解析缓存后端
func buildGeoCache(cfg *config.Config, log *zap.Logger) (cache.TTLStore, error) {
	if cfg.Geo.CacheBackend == "redis" {
		return cache.NewRedisTTLStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, "geo", log)
	}
	return cache.NewLocalTTLStore(time.Hour), nil
}
