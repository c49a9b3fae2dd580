package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"morntool/backend/internal/resilience"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 告警
type Alert struct {
	Service    string     `json:"service"`
	Message    string     `json:"message"`
	Level      AlertLevel `json:"level"`
	ErrorCount int        `json:"errorCount"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

const watchInterval = 30 * time.Second

// DegradationWatcher 周期性检查外部依赖的降级状态并发出告警。
// 数据来源是错误恢复追踪器，不做独立探测。
type DegradationWatcher struct {
	recovery *resilience.Recovery
	metrics  *Metrics
	services []string
	interval time.Duration

	mu     sync.RWMutex
	active map[string]*Alert

	log  *zap.Logger
	stop chan struct{}
	once sync.Once
}

// NewDegradationWatcher 创建降级监视器，services 是要跟踪的依赖名列表
func NewDegradationWatcher(recovery *resilience.Recovery, metrics *Metrics, services []string, log *zap.Logger) *DegradationWatcher {
	return &DegradationWatcher{
		recovery: recovery,
		metrics:  metrics,
		services: services,
		interval: watchInterval,
		active:   make(map[string]*Alert),
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start 启动轮询，ctx 取消或 Close 时退出
func (w *DegradationWatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.check()
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			}
		}
	}()
}

// Close 停止监视器
func (w *DegradationWatcher) Close() {
	w.once.Do(func() { close(w.stop) })
}

// ActiveAlerts 当前未恢复的告警快照
func (w *DegradationWatcher) ActiveAlerts() []Alert {
	w.mu.RLock()
	defer w.mu.RUnlock()

	alerts := make([]Alert, 0, len(w.active))
	for _, a := range w.active {
		alerts = append(alerts, *a)
	}
	return alerts
}

// check 对比每个服务的健康状态和已有告警，触发或恢复
func (w *DegradationWatcher) check() {
	for _, service := range w.services {
		health := w.recovery.GetServiceHealth(service)

		w.mu.Lock()
		existing, firing := w.active[service]
		switch {
		case !health.Healthy && !firing:
			alert := &Alert{
				Service:    service,
				Message:    "依赖降级：错误数超过阈值",
				Level:      AlertLevelCritical,
				ErrorCount: health.ErrorCount,
				Timestamp:  time.Now(),
			}
			w.active[service] = alert
			if w.metrics != nil {
				w.metrics.RecordAlert(string(alert.Level), service)
			}
			w.log.Error("服务降级告警",
				zap.String("service", service),
				zap.Int("error_count", health.ErrorCount))

		case !health.Healthy && firing:
			existing.ErrorCount = health.ErrorCount

		case health.Healthy && firing:
			now := time.Now()
			existing.Resolved = true
			existing.ResolvedAt = &now
			delete(w.active, service)
			w.log.Info("服务降级恢复", zap.String("service", service))
		}
		w.mu.Unlock()
	}
}
