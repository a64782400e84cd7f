package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"scripture_quiz_backend/internal/config"
)

// ErrCacheMiss 键不存在或已过期
var ErrCacheMiss = errors.New("cache miss")

// Client 缓存能力接口。启动时按 cache.driver 选择实现，调用方不感知具体后端。
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// New 根据配置创建缓存；driver=redis 时 rdb 不能为空
func New(cfg *config.CacheConfig, rdb *redis.Client) (Client, error) {
	switch cfg.Driver {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("cache driver redis requires a redis client")
		}
		return NewRedis(rdb, "squiz:"), nil
	case "memory", "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
}

// CacheOrExecute 先读缓存，未命中时执行 fn 并回写。
// 缓存读写失败不影响结果，只会退化为直接执行 fn。
func CacheOrExecute[T any](ctx context.Context, c Client, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var out T
	if raw, err := c.Get(ctx, key); err == nil {
		if json.Unmarshal(raw, &out) == nil {
			return out, nil
		}
	}

	out, err := fn()
	if err != nil {
		return out, err
	}
	if raw, err := json.Marshal(out); err == nil {
		_ = c.Set(ctx, key, raw, ttl)
	}
	return out, nil
}
