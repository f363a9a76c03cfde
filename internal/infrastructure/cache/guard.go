package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kefkio/bloc-sacco/pkg/id"
	"github.com/kefkio/bloc-sacco/pkg/lock"
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a lock.Guard shared by every replica of the service. The TTL
// bounds how long a crashed holder can block a key.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, prefix: "guard:", ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := id.NewID32()
	k := g.prefix + key
	ok, err := g.rdb.SetNX(ctx, k, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("guard acquire %s: %w", key, err)
	}
	if !ok {
		return nil, lock.ErrHeld
	}
	return func() {
		// fresh context: release must run even when the request was cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, g.rdb, []string{k}, token).Err()
	}, nil
}

var _ lock.Guard = (*RedisGuard)(nil)
