package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until the token would expire anyway.
type Denylist interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) bool
}

// RedisDenylist keeps revoked ids as expiring keys.
type RedisDenylist struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisDenylist(rdb *redis.Client, logger *slog.Logger) *RedisDenylist {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisDenylist{rdb: rdb, prefix: "jti:revoked:", logger: logger}
}

// Revoke stores id with a TTL ending at until. Already expired tokens are
// not stored.
func (d *RedisDenylist) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 || id == "" {
		return nil
	}
	return d.rdb.Set(ctx, d.prefix+id, 1, ttl).Err()
}

// IsRevoked fails open: if Redis is unreachable the token is treated as live.
func (d *RedisDenylist) IsRevoked(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	n, err := d.rdb.Exists(ctx, d.prefix+id).Result()
	if err != nil {
		d.logger.Warn("denylist lookup failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}
