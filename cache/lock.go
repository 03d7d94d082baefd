package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

const (
	lockRetryMin = 20 * time.Millisecond
	lockRetryMax = 500 * time.Millisecond
)

// keyLock 基于 SET NX PX 的单键互斥锁
type keyLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func newKeyLock(client *redis.Client, key string, ttl time.Duration) *keyLock {
	return &keyLock{client: client, key: key, token: uuid.NewString(), ttl: ttl}
}

// acquire 阻塞直到拿到锁或 ctx 结束
func (l *keyLock) acquire(ctx context.Context) error {
	delay := lockRetryMin
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("lock %s not acquired: %w", l.key, ctx.Err())
		case <-timer.C:
		}
		if delay *= 2; delay > lockRetryMax {
			delay = lockRetryMax
		}
	}
}

func (l *keyLock) release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}
