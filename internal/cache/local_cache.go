package cache

import (
	"context"
	"sync"
	"time"
)

// TTLStore 带过期时间的键值存储接口。
// 进程内 map 是默认实现；接口边界允许后续切换到共享存储（如 Redis）而不改调用方。
type TTLStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// LocalTTLStore 本地内存 TTL 缓存
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持按条目 TTL 过期
// - 后台定期清理过期条目
type LocalTTLStore struct {
	data       sync.Map
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLocalTTLStore 创建本地 TTL 缓存并启动清理循环
func NewLocalTTLStore(defaultTTL time.Duration) *LocalTTLStore {
	store := &LocalTTLStore{
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}

	go store.sweepLoop()

	return store
}

// Get 获取缓存值，过期条目按未命中处理并顺手删除
func (s *LocalTTLStore) Get(_ context.Context, key string) ([]byte, bool) {
	val, ok := s.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		s.data.Delete(key)
		return nil, false
	}

	return entry.value, true
}

// Set 写入缓存值，ttl 为 0 时使用默认 TTL
func (s *LocalTTLStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	s.data.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Delete 删除缓存值
func (s *LocalTTLStore) Delete(_ context.Context, key string) {
	s.data.Delete(key)
}

// Clear 清空所有缓存
func (s *LocalTTLStore) Clear(_ context.Context) {
	s.data.Range(func(key, _ interface{}) bool {
		s.data.Delete(key)
		return true
	})
}

// Close 停止清理循环
func (s *LocalTTLStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// sweepLoop 定期清理过期条目
func (s *LocalTTLStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.data.Range(func(key, value interface{}) bool {
				if now.After(value.(*cacheEntry).expiresAt) {
					s.data.Delete(key)
				}
				return true
			})
		}
	}
}
