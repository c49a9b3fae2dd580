package resilience

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// errorThreshold 服务错误总数达到该值即视为降级
	errorThreshold = 5
	// resetTime 同一错误桶空闲超过该时长后计数重置
	resetTime = 5 * time.Minute
)

type errorBucket struct {
	count     int
	lastError time.Time
}

// Recovery 按服务键滚动统计错误次数，暴露粗粒度的降级信号。
// 它只提供健康查询，并不拦截调用。每进程一个实例，通过依赖注入传递。
type Recovery struct {
	mu          sync.Mutex
	errorCounts map[string]*errorBucket
	now         func() time.Time
}

// NewRecovery 创建错误恢复追踪器
func NewRecovery() *Recovery {
	return &Recovery{
		errorCounts: make(map[string]*errorBucket),
		now:         time.Now,
	}
}

// RecordError 记录一次服务错误。桶按 "service:message" 分键；
// 距上次同键错误超过 5 分钟则重置为 1，否则累加。
func (r *Recovery) RecordError(service string, err error) {
	key := fmt.Sprintf("%s:%s", service, err.Error())
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.errorCounts[key]
	if ok && now.Sub(existing.lastError) > resetTime {
		r.errorCounts[key] = &errorBucket{count: 1, lastError: now}
		return
	}

	count := 1
	if ok {
		count = existing.count + 1
	}
	r.errorCounts[key] = &errorBucket{count: count, lastError: now}
}

// IsServiceDegraded 判断服务错误总数是否达到降级阈值
func (r *Recovery) IsServiceDegraded(service string) bool {
	return r.serviceErrorCount(service) >= errorThreshold
}

// ServiceHealth 服务健康状态
type ServiceHealth struct {
	Healthy    bool `json:"healthy"`
	ErrorCount int  `json:"errorCount"`
}

// GetServiceHealth 返回服务的健康状态和累计错误数
func (r *Recovery) GetServiceHealth(service string) ServiceHealth {
	count := r.serviceErrorCount(service)
	return ServiceHealth{
		Healthy:    count < errorThreshold,
		ErrorCount: count,
	}
}

func (r *Recovery) serviceErrorCount(service string) int {
	prefix := service + ":"

	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for key, bucket := range r.errorCounts {
		if strings.HasPrefix(key, prefix) {
			total += bucket.count
		}
	}
	return total
}
