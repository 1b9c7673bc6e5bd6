package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; defaults apply when a variable is unset.
type Config struct {
	Env       string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"APP_PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	DBUser string `envconfig:"DB_USER" default:"root"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME" default:"vastu"`

	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer   string        `envconfig:"JWT_ISSUER" default:"vastu-backend"`
	AccessTTL   time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"60m"`
	GuestTTL    time.Duration `envconfig:"GUEST_TOKEN_TTL" default:"24h"`
	ResetTTL    time.Duration `envconfig:"RESET_TOKEN_TTL" default:"30m"`
	BcryptCost  int           `envconfig:"BCRYPT_COST" default:"12"`
	AutoMigrate bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	GuestRetentionDays int    `envconfig:"GUEST_RETENTION_DAYS" default:"7"`
	GuestSweepCron     string `envconfig:"GUEST_SWEEP_CRON" default:"0 3 * * *"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`

	RabbitURL       string `envconfig:"RABBITMQ_URL"`
	IdentityLogPath string `envconfig:"IDENTITY_LOG_PATH" default:"logs/identity.log"`
}

// MinSecretLen is the shortest signing secret accepted for HS256.
const MinSecretLen = 32

// Load reads an optional .env file, then the process environment, and
// validates the result. Callers decide whether an error is fatal.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < MinSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLen)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.AccessTTL <= 0 || c.GuestTTL <= 0 || c.ResetTTL <= 0 {
		return errors.New("token ttls must be positive")
	}
	if c.GuestRetentionDays < 1 {
		return errors.New("GUEST_RETENTION_DAYS must be at least 1")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}
