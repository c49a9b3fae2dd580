package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTTLStore Redis 实现的 TTL 缓存，用于多实例共享地理解析结果
type RedisTTLStore struct {
	rdb       *goredis.Client
	keyPrefix string
	log       *zap.Logger
}

// NewRedisTTLStore 创建 Redis TTL 缓存并测试连接
func NewRedisTTLStore(addr, password string, db int, keyPrefix string, log *zap.Logger) (*RedisTTLStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("connected to Redis cache",
		zap.String("address", addr),
		zap.Int("db", db),
	)

	return &RedisTTLStore{rdb: rdb, keyPrefix: keyPrefix, log: log}, nil
}

func (s *RedisTTLStore) key(k string) string {
	return s.keyPrefix + k
}

// Get 获取缓存值；Redis 错误按未命中处理，缓存层失败不应影响调用方
func (s *RedisTTLStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			s.log.Warn("redis cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set 写入缓存值
func (s *RedisTTLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		s.log.Warn("redis cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete 删除缓存值
func (s *RedisTTLStore) Delete(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		s.log.Warn("redis cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear 清空带前缀的所有键
func (s *RedisTTLStore) Clear(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			s.log.Warn("redis cache clear failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
}

// Close 关闭 Redis 连接
func (s *RedisTTLStore) Close() error {
	return s.rdb.Close()
}
