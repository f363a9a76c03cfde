package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for the idempotency store and the
// distributed guard.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool
	PoolSize int

	// DialTimeout also bounds the startup ping; zero means 5s.
	DialTimeout time.Duration
}

func (c RedisConfig) Options() *redis.Options {
	opts := &redis.Options{
		Addr:        c.Addr,
		Username:    c.Username,
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: c.dialTimeout(),
	}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

func (c RedisConfig) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 5 * time.Second
}

// OpenRedis connects and pings once so a bad address fails at startup.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	r := redis.NewClient(cfg.Options())
	ctx, cancel := context.WithTimeout(ctx, cfg.dialTimeout())
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return r, nil
}
