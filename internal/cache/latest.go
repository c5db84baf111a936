package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
)

// 最近读数键前缀，完整键形如 "ultima:clima/temperatura"
const latestKeyPrefix = "ultima:"

// NewRedisClient 创建Redis客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping 测试Redis连接
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// LatestCache 最近读数热缓存
// 摄取管线在成功持久化后把每个主题的最新载荷写入 Redis，
// 供实时诊断查询使用；缓存失败不影响持久化路径
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLatestCache 创建热缓存（TTL 过期后僵死主题自动消失）
func NewLatestCache(client *redis.Client, ttl time.Duration) *LatestCache {
	return &LatestCache{
		client: client,
		ttl:    ttl,
	}
}

// SetLatest 记录主题的最新载荷
func (c *LatestCache) SetLatest(ctx context.Context, topic string, payload []byte) error {
	key := latestKeyPrefix + topic
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest reading for %s: %w", topic, err)
	}
	return nil
}

// GetLatest 读取主题的最新载荷
func (c *LatestCache) GetLatest(ctx context.Context, topic string) ([]byte, error) {
	key := latestKeyPrefix + topic
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("no cached reading for topic %s", topic)
		}
		return nil, fmt.Errorf("failed to read cached reading for %s: %w", topic, err)
	}
	return payload, nil
}

// Close 关闭Redis连接
func (c *LatestCache) Close() error {
	return c.client.Close()
}
