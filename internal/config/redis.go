package config

// Redis backs the logout denylist, the shared rate limit counters and the
// asynq worker. If the server cannot be reached at startup NewRedisClient
// returns nil and callers degrade: rate limits fall back to in-process
// counters and logout revocation is skipped.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client from cfg. The returned client
// is nil if a connection cannot be established.
func NewRedisClient(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		TLSConfig: cfg.redisTLS(),
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

// AsynqRedisOpt returns the connection options the task queue uses.
func (c *Config) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      c.RedisAddr,
		Password:  c.RedisPassword,
		DB:        c.RedisDB,
		TLSConfig: c.redisTLS(),
	}
}

func (c *Config) redisTLS() *tls.Config {
	if !c.RedisTLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
