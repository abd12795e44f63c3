package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	StoreDriver  string     `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL  string     `env:"DATABASE_URL"`
	JWTSecretKey string     `env:"JWT_SECRET_KEY,required"`
	ServerPort   int        `env:"SERVER_PORT" envDefault:"8080"`
	PublicURL    string     `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Пустой REDIS_URL - события раздаются только локальному хабу.
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_EVENTS_CHANNEL" envDefault:"matchroom:events"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`

	// Архив истории счета в R2 включается, только если заданы все поля.
	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`

	AccessTokenTTL          time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"168h"`
	AccessEmailCooldown     time.Duration `env:"ACCESS_EMAIL_COOLDOWN" envDefault:"5m"`
	PhaseSkipOptional       bool          `env:"PHASE_SKIP_OPTIONAL" envDefault:"false"`
	AutoFinalizeOnAccept    bool          `env:"AUTO_FINALIZE_ON_ACCEPT" envDefault:"false"`
	RejectStaleVerification bool          `env:"REJECT_STALE_VERIFICATION" envDefault:"false"`
	TurnTimeoutPolicy       string        `env:"TURN_TIMEOUT_POLICY" envDefault:"none"`
	SweepInterval           time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// R2Configured сообщает, заданы ли все параметры хранилища R2.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Отсутствие .env не ошибка.
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse разбирает окружение по opts и проверяет значения. В тестах окружение передается через opts.Environment.
func Parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable is not set"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}

	switch c.TurnTimeoutPolicy {
	case "none", "pass_turn":
	default:
		errs = append(errs, fmt.Errorf("TURN_TIMEOUT_POLICY must be \"none\" or \"pass_turn\", got %q", c.TurnTimeoutPolicy))
	}

	if c.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", c.AccessTokenTTL))
	}
	if c.AccessEmailCooldown < 0 {
		errs = append(errs, fmt.Errorf("ACCESS_EMAIL_COOLDOWN must not be negative, got %s", c.AccessEmailCooldown))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval))
	}

	return errors.Join(errs...)
}
