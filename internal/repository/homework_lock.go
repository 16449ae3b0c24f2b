package repository

import (
	"context"
	"course_homework_backend/internal/util"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// KeyLocker serialises work on a single homework key across processes.
type KeyLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// NoopKeyLocker 未启用 Redis 时使用，仅依赖存储的条件写
type NoopKeyLocker struct{}

func (NoopKeyLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return func() {}, nil
}

// 仅当值仍是自己的令牌时才删除，避免释放别人续上的锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisKeyLocker struct {
	Redis         *redis.Client
	RetryInterval time.Duration
}

func NewRedisKeyLocker(rdb *redis.Client) *RedisKeyLocker {
	return &RedisKeyLocker{Redis: rdb, RetryInterval: 20 * time.Millisecond}
}

// LockKey 每个 (题目, 学生) 一把锁
func LockKey(questionGID, studentID string) string {
	return fmt.Sprintf("homework:lock:%s:%s", questionGID, studentID)
}

func (l *RedisKeyLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.Redis.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: lock %s: %v", util.ErrStoreTimeout, key, err)
			}
			return nil, fmt.Errorf("%w: lock %s: %v", util.ErrStore, key, err)
		}
		if ok {
			return func() {
				// 释放不受调用方 ctx 取消的影响
				releaseLockScript.Run(context.Background(), l.Redis, []string{key}, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: lock %s is busy", util.ErrConcurrency, key)
		case <-time.After(l.RetryInterval):
		}
	}
}
