// Package ratelimit provides a Redis-backed counter so every server
// instance shares one sliding-window budget per client.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

var _ httprate.LimitCounter = (*RedisCounter)(nil)

// RedisCounter implements httprate.LimitCounter with one Redis key per
// (client key, window). Redis errors are logged and the request is let
// through.
type RedisCounter struct {
	rdb     *redis.Client
	prefix  string
	window  time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisCounter(rdb *redis.Client, prefix string, logger *slog.Logger) *RedisCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCounter{rdb: rdb, prefix: prefix, window: time.Minute, timeout: 500 * time.Millisecond, logger: logger}
}

// Config is called once by httprate with the limiter's settings.
func (c *RedisCounter) Config(_ int, windowLength time.Duration) {
	c.window = windowLength
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, key, window.Unix())
}

func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	k := c.key(key, currentWindow)
	pipe := c.rdb.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	// The previous window is still read for the sliding estimate.
	pipe.Expire(ctx, k, 3*c.window)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("ratelimit: redis increment failed", slog.String("error", err.Error()))
	}
	return nil
}

func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	vals, err := c.rdb.MGet(ctx, c.key(key, currentWindow), c.key(key, previousWindow)).Result()
	if err != nil {
		c.logger.Warn("ratelimit: redis read failed", slog.String("error", err.Error()))
		return 0, 0, nil
	}
	return asInt(vals[0]), asInt(vals[1]), nil
}

func asInt(v any) int {
	switch t := v.(type) {
	case string:
		n, _ := strconv.Atoi(t)
		return n
	case int64:
		return int(t)
	}
	return 0
}
