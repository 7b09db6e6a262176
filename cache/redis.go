package cache

import (
	"context"
	"time"

	"audiomanifest/config"
	"audiomanifest/logger"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
)

const (
	framesKeyPrefix = "audiomanifest:frames:"
	// DefaultFramesTTL bounds how long a measured frame count stays cached.
	DefaultFramesTTL = 30 * 24 * time.Hour
)

// FrameCache 基于 Redis 的帧数缓存，实现 audio.FrameCache。
type FrameCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFrameCache wraps an existing client.
func NewFrameCache(client *redis.Client, ttl time.Duration) *FrameCache {
	return &FrameCache{client: client, ttl: ttl}
}

// ConnectFrameCache 初始化Redis连接并测试连通性
func ConnectFrameCache(ctx context.Context, cfg *config.Config) (*FrameCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis %s", cfg.RedisAddr())
	}

	logger.Info("frame cache connected", logger.String("addr", cfg.RedisAddr()), logger.Int("db", cfg.RedisDB))
	return NewFrameCache(client, DefaultFramesTTL), nil
}

// GetFrames 获取缓存的帧数；键不存在时 ok=false 且无错误
func (c *FrameCache) GetFrames(ctx context.Context, key string) (int64, bool, error) {
	frames, err := c.client.Get(ctx, framesKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return frames, true, nil
}

// SetFrames 写入帧数
func (c *FrameCache) SetFrames(ctx context.Context, key string, frames int64) error {
	return c.client.Set(ctx, framesKey(key), frames, c.ttl).Err()
}

// Close 关闭Redis连接
func (c *FrameCache) Close() error {
	return c.client.Close()
}

func framesKey(key string) string {
	return framesKeyPrefix + key
}

// scanKeys 使用 SCAN 遍历所有帧数缓存键，对每批键调用 fn
func (c *FrameCache) scanKeys(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, framesKeyPrefix+"*", 500).Result()
		if err != nil {
			return errors.Wrap(err, "scan frame cache")
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Count returns the number of cached frame counts.
func (c *FrameCache) Count(ctx context.Context) (int, error) {
	n := 0
	err := c.scanKeys(ctx, func(keys []string) error {
		n += len(keys)
		return nil
	})
	return n, err
}

// Purge 删除所有帧数缓存，返回删除的键数量
func (c *FrameCache) Purge(ctx context.Context) (int, error) {
	n := 0
	err := c.scanKeys(ctx, func(keys []string) error {
		deleted, err := c.client.Del(ctx, keys...).Result()
		if err != nil {
			return errors.Wrap(err, "delete frame cache keys")
		}
		n += int(deleted)
		return nil
	})
	if err == nil {
		logger.Info("frame cache purged", logger.Int("keys", n))
	}
	return n, err
}
