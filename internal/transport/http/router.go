package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"morntool/backend/internal/config"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/middleware"
	"morntool/backend/internal/monitoring"
	"morntool/backend/internal/security"
	"morntool/backend/internal/service"
)

// 安装包上传走 multipart，上限放宽到 200MB
const maxBodySize = 200 << 20

// RouterDependencies 路由依赖
type RouterDependencies struct {
	Config  *config.Config
	Log     *zap.Logger
	Metrics *monitoring.Metrics

	Auth     *service.AuthService
	Stats    *service.StatsService
	Packages map[domain.DeploymentRegion]*service.PackageService
	Payments PaymentCreator
	Geo      GeoDetector
	CSRF     *security.CSRF

	LiveHandler  http.Handler
	ReadyHandler http.Handler

	// AuthLimiter 登录注册和下单接口的限流器，可为空
	AuthLimiter *middleware.RateLimiter
}

// NewRouter 创建并配置 gin 路由
func NewRouter(deps RouterDependencies) *gin.Engine {
	if deps.Config.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件，顺序敏感：恢复和指标在最外层
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Log)
		r.Use(mm.PanicRecovery())
		r.Use(mm.HTTPMetrics())
	} else {
		r.Use(gin.Recovery())
	}
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodySizeLimit(maxBodySize))
	r.Use(corsMiddleware(deps.Config.CORS))
	r.Use(deps.CSRF.Middleware())

	jwtAuth := middleware.NewJWTAuth(deps.Auth, deps.Log)

	authHandler := NewAuthHandler(deps.Auth, deps.Metrics, deps.Log)
	geoHandler := NewGeoHandler(deps.Geo, deps.Metrics)
	paymentHandler := NewPaymentHandler(deps.Payments, deps.Metrics, deps.Log)
	downloadHandler := NewDownloadHandler(deps.Packages[deps.Config.Region.Deployment], deps.Metrics, deps.Log)
	adminHandler := NewAdminHandler(deps.Stats, deps.Packages, deps.Log)

	limited := func(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		if deps.AuthLimiter == nil {
			return handlers
		}
		return append([]gin.HandlerFunc{deps.AuthLimiter.Middleware()}, handlers...)
	}

	api := r.Group("/api")
	{
		api.GET("/csrf-token", deps.CSRF.TokenHandler)
		api.POST("/csrf-token", deps.CSRF.TokenHandler)

		api.GET("/geo", geoHandler.Detect)

		auth := api.Group("/auth")
		{
			auth.POST("/signup", limited(authHandler.Signup)...)
			auth.POST("/login", limited(authHandler.Login)...)
			auth.POST("/refresh", authHandler.Refresh)
		}

		downloads := api.Group("/downloads")
		{
			downloads.GET("", downloadHandler.List)
			downloads.POST("/:id/download", jwtAuth.OptionalAuth(), downloadHandler.Download)
		}

		pay := api.Group("/payment")
		{
			pay.POST("/create", limited(jwtAuth.OptionalAuth(), paymentHandler.Create)...)
		}

		admin := api.Group("/admin", jwtAuth.RequireAuth(), jwtAuth.RequireAdmin())
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/orders", adminHandler.Orders)
			admin.GET("/users", adminHandler.Users)
			admin.GET("/packages", adminHandler.ListPackages)
			admin.POST("/packages", adminHandler.UploadPackage)
			admin.PATCH("/packages/:id", adminHandler.PatchPackage)
			admin.DELETE("/packages/:id", adminHandler.DeletePackage)
		}
	}

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.LiveHandler != nil {
		r.GET("/live", gin.WrapH(deps.LiveHandler))
	}
	if deps.ReadyHandler != nil {
		r.GET("/ready", gin.WrapH(deps.ReadyHandler))
	}

	return r
}

// corsMiddleware 跨域配置。带 "*" 时必须关掉凭据，否则浏览器直接拒绝。
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "x-csrf-token"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if allowAll {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}

	return cors.New(corsConfig)
}
