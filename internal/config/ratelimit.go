package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RateClass is one sliding-window limit: Requests per Window per client.
type RateClass struct {
	Requests int
	Window   time.Duration
}

// RateLimitConfig groups the limits applied to each route class.
type RateLimitConfig struct {
	Enabled bool
	Prefix  string
	// TrustProxy keys clients by X-Real-IP / X-Forwarded-For instead of
	// the socket address. Only enable it behind a proxy that sets them.
	TrustProxy bool
	General    RateClass
	Auth       RateClass
	Admin      RateClass
}

// rateLimitEnv mirrors RateLimitConfig as RATE_LIMIT_* variables.
type rateLimitEnv struct {
	Enabled    bool   `envconfig:"ENABLED" default:"true"`
	Prefix     string `envconfig:"PREFIX" default:"rl"`
	TrustProxy bool   `envconfig:"TRUST_PROXY" default:"false"`

	GeneralRequests int           `envconfig:"GENERAL_REQUESTS" default:"120"`
	GeneralWindow   time.Duration `envconfig:"GENERAL_WINDOW" default:"1m"`
	AuthRequests    int           `envconfig:"AUTH_REQUESTS" default:"10"`
	AuthWindow      time.Duration `envconfig:"AUTH_WINDOW" default:"1m"`
	AdminRequests   int           `envconfig:"ADMIN_REQUESTS" default:"60"`
	AdminWindow     time.Duration `envconfig:"ADMIN_WINDOW" default:"1m"`
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables. Unparseable values
// and non-positive limits are errors.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	var env rateLimitEnv
	if err := envconfig.Process("RATE_LIMIT", &env); err != nil {
		return RateLimitConfig{}, err
	}
	cfg := RateLimitConfig{
		Enabled:    env.Enabled,
		Prefix:     env.Prefix,
		TrustProxy: env.TrustProxy,
		General:    RateClass{Requests: env.GeneralRequests, Window: env.GeneralWindow},
		Auth:       RateClass{Requests: env.AuthRequests, Window: env.AuthWindow},
		Admin:      RateClass{Requests: env.AdminRequests, Window: env.AdminWindow},
	}
	classes := map[string]RateClass{"GENERAL": cfg.General, "AUTH": cfg.Auth, "ADMIN": cfg.Admin}
	for name, c := range classes {
		if c.Requests < 1 {
			return RateLimitConfig{}, fmt.Errorf("RATE_LIMIT_%s_REQUESTS must be at least 1", name)
		}
		if c.Window <= 0 {
			return RateLimitConfig{}, fmt.Errorf("RATE_LIMIT_%s_WINDOW must be positive", name)
		}
	}
	return cfg, nil
}
