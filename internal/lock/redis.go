package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based lock shared by every API replica.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, retry: 20 * time.Millisecond}
}

func (l *RedisLocker) key(k string) string {
	return fmt.Sprintf("%slock:%s", l.prefix, k)
}

// Acquire polls SET NX until it wins, the ttl elapses or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	rk := l.key(key)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	for {
		ok, err := l.rdb.SetNX(ctx, rk, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Detached from the request context so a cancelled request still releases.
			rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
			defer rcancel()
			_ = releaseScript.Run(rctx, l.rdb, []string{rk}, token).Err()
		})
	}, nil
}
