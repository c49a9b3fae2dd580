package georouter

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"morntool/backend/internal/cache"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/resilience"
)

const (
	// cacheTTL 同一 IP 的归属地结果缓存时长
	cacheTTL = time.Hour
	// recoveryService 错误恢复统计里的服务名
	recoveryService = "geo-detection"
)

// Options 路由器可选项
type Options struct {
	// Cache 结果缓存，缺省用进程内 TTL 缓存
	Cache cache.TTLStore
	// Client 出站 HTTP 客户端
	Client *http.Client
	// MMDBPath 可选的 GeoLite2 Country 库文件路径
	MMDBPath string
}

// Router 根据客户端 IP 推断地域画像。
// 查询链：缓存 → 三个外部源依次降级 → 本地启发式，
// 全部失败时返回默认画像（美区）并照常缓存，避免反复打穿。
type Router struct {
	cache     cache.TTLStore
	client    *http.Client
	providers []provider
	heuristic *localHeuristic
	recovery  *resilience.Recovery
	group     singleflight.Group
	log       *zap.Logger
}

// New 创建地域路由器
func New(opts Options, recovery *resilience.Recovery, log *zap.Logger) *Router {
	store := opts.Cache
	if store == nil {
		store = cache.NewLocalTTLStore(cacheTTL)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: resilience.DefaultRequestTimeout}
	}
	return &Router{
		cache:     store,
		client:    client,
		providers: defaultProviders(),
		heuristic: newLocalHeuristic(opts.MMDBPath, log),
		recovery:  recovery,
		log:       log,
	}
}

// Detect 返回 IP 对应的地域画像，永不失败
func (r *Router) Detect(ctx context.Context, ip string) domain.GeoResult {
	if data, ok := r.cache.Get(ctx, cacheKey(ip)); ok {
		var result domain.GeoResult
		if err := json.Unmarshal(data, &result); err == nil {
			return result
		}
		r.cache.Delete(ctx, cacheKey(ip))
	}

	// 同一 IP 的并发请求合并为一次探测。
	// 探测用脱离取消的上下文执行，首个调用方退出不牵连其它等待者。
	v, _, _ := r.group.Do(ip, func() (interface{}, error) {
		return r.detect(context.WithoutCancel(ctx), ip), nil
	})
	return v.(domain.GeoResult)
}

func (r *Router) detect(ctx context.Context, ip string) domain.GeoResult {
	// 空 IP、内网和回环地址没有外部查询价值，直接走本地判定
	if isLocalIP(ip) {
		result := domain.BuildGeoResult(r.heuristic.countryCode(ip))
		if data, err := json.Marshal(result); err == nil {
			r.cache.Set(ctx, cacheKey(ip), data, cacheTTL)
		}
		return result
	}

	fb := resilience.NewFallbackHandler[string](recoveryService, r.recovery, r.log)
	for _, p := range r.providers {
		p := p
		fb.Add(func(ctx context.Context) (string, error) {
			return p.lookup(ctx, r.client, ip)
		})
	}
	fb.Add(func(_ context.Context) (string, error) {
		return r.heuristic.countryCode(ip), nil
	})

	countryCode, err := fb.Execute(ctx)
	var result domain.GeoResult
	if err != nil {
		r.log.Warn("地域探测全部失败，使用默认画像", zap.String("ip", ip), zap.Error(err))
		result = domain.DefaultGeoResult()
	} else {
		result = domain.BuildGeoResult(countryCode)
	}

	if data, err := json.Marshal(result); err == nil {
		r.cache.Set(ctx, cacheKey(ip), data, cacheTTL)
	}
	return result
}

// ClearCache 清空全部缓存结果
func (r *Router) ClearCache(ctx context.Context) {
	r.cache.Clear(ctx)
}

// Health 探测服务当前是否健康
func (r *Router) Health() resilience.ServiceHealth {
	return r.recovery.GetServiceHealth(recoveryService)
}

// Close 释放本地库文件句柄
func (r *Router) Close() {
	r.heuristic.close()
}

func cacheKey(ip string) string {
	return "geo:" + ip
}

// isLocalIP 空串、解析失败、回环或内网地址都视为本地流量
func isLocalIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsPrivate()
}
