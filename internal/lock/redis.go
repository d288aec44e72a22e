package lock

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"news-lens/config"
	"news-lens/internal/logging"
)

const pollInterval = 100 * time.Millisecond

// releaseScript 只在 token 一致时删除 key，避免释放别人的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SETNX 的跨实例锁
type RedisLocker struct {
	inner *redis.Client
	lease time.Duration
}

// NewRedisLocker 连接并 ping Redis
func NewRedisLocker(ctx context.Context, cfg config.RedisConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", cfg.Addr)
	}
	lease := cfg.LockLease
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	return &RedisLocker{inner: client, lease: lease}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.inner.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "claim %s", key)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 请求的 ctx 可能已经结束
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.inner, []string{key}, token).Err(); err != nil {
				logging.Log.WithField("key", key).Warnf("release claim: %v", err)
			}
		})
	}, nil
}

func (l *RedisLocker) Close() error {
	return l.inner.Close()
}
