package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/vastu-backend/internal/config"
	"github.com/iliyamo/vastu-backend/internal/ratelimit"
)

// RateLimits holds one limiter per route class. Each class has its own
// budget per client IP.
type RateLimits struct {
	General echo.MiddlewareFunc
	Auth    echo.MiddlewareFunc
	Admin   echo.MiddlewareFunc
}

// NewRateLimits builds the limiters. With a Redis client the counters are
// shared between instances; without one each process counts on its own.
func NewRateLimits(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) RateLimits {
	if !cfg.Enabled {
		pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
		return RateLimits{General: pass, Auth: pass, Admin: pass}
	}
	build := func(class string, rc config.RateClass) echo.MiddlewareFunc {
		var counter httprate.LimitCounter
		if rdb != nil {
			counter = ratelimit.NewRedisCounter(rdb, cfg.Prefix+":"+class, logger)
		}
		return NewLimiter(class, rc, cfg.TrustProxy, counter)
	}
	return RateLimits{
		General: build("general", cfg.General),
		Auth:    build("auth", cfg.Auth),
		Admin:   build("admin", cfg.Admin),
	}
}

// NewLimiter returns a sliding-window limiter for one class. counter may be
// nil to count in process.
func NewLimiter(class string, rc config.RateClass, trustProxy bool, counter httprate.LimitCounter) echo.MiddlewareFunc {
	keyFn := httprate.KeyByIP
	if trustProxy {
		keyFn = httprate.KeyByRealIP
	}
	retryAfter := int(math.Ceil(rc.Window.Seconds()))
	opts := []httprate.Option{
		httprate.WithKeyFuncs(keyFn),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			rateLimited.WithLabelValues(class).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": retryAfter,
			})
		}),
	}
	if counter != nil {
		opts = append(opts, httprate.WithLimitCounter(counter))
	}
	return echo.WrapMiddleware(httprate.Limit(rc.Requests, rc.Window, opts...))
}
