package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowCounter 是固定窗口计数所需的两个命令。
type windowCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisClient 是 API 层用到的 Redis 能力：就绪探针与限流计数。
type RedisClient interface {
	windowCounter
	Ping(ctx context.Context) *redis.StatusCmd
}

// hitWindow 对 key 计数一次，窗口内第一次计数时设置过期时间。
func hitWindow(ctx context.Context, rc windowCounter, key string, window time.Duration) (int64, error) {
	n, err := rc.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 {
		// Expire 失败时本次计数仍然有效
		rc.Expire(ctx, key, window)
	}
	return n, nil
}

// uploadRateKey 按用户与 UTC 日期生成每日上传计数的键。
func uploadRateKey(userID string, now time.Time) string {
	return fmt.Sprintf("rate:resume-upload:user:%s:%s", userID, now.UTC().Format("20060102"))
}
