package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// incrScript increments the bucket and arms its TTL on the first hit, in a
// single round trip that Redis executes atomically.
var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter keeps fixed-window counters in Redis so every instance sees
// the same count.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisLimiter creates a limiter backed by the given client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	bucket := fmt.Sprintf("%s%s:%d", redisKeyPrefix, key, windowIndex(l.now(), window))
	count, err := incrScript.Run(ctx, l.client, []string{bucket}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return count <= int64(limit), nil
}
