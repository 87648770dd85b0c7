package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    int    `env:"PORT" env-default:"8080"`
	BaseURL string `env:"BASE_URL"` // used for returning absolute short URLs
	DBDSN   string `env:"DB_DSN" env-default:"file:linkpulse.db?_foreign_keys=on"`

	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool `env:"TRUST_PROXY" env-default:"false"`

	RedisAddr     string `env:"REDIS_ADDR"` // empty: in-process cache
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	CacheTTL        time.Duration `env:"CACHE_TTL" env-default:"1h"`
	CachePrewarm    int           `env:"CACHE_PREWARM" env-default:"100"`
	CreateRateRPS   float64       `env:"CREATE_RATE_RPS" env-default:"2"`
	CreateRateBurst int           `env:"CREATE_RATE_BURST" env-default:"5"`

	JWTSecret string `env:"JWT_SECRET"` // empty: owner tokens are not accepted

	GeoEndpoint string        `env:"GEO_ENDPOINT" env-default:"http://ip-api.com/json/"` // empty: no geo lookup
	GeoTimeout  time.Duration `env:"GEO_TIMEOUT" env-default:"300ms"`

	VisitAsync     bool `env:"VISIT_ASYNC" env-default:"true"`
	VisitQueueSize int  `env:"VISIT_QUEUE_SIZE" env-default:"10000"`
	VisitWorkers   int  `env:"VISIT_WORKERS" env-default:"2"`

	AliasWindow time.Duration `env:"ANALYTICS_ALIAS_WINDOW" env-default:"168h"`
	TopicWindow time.Duration `env:"ANALYTICS_TOPIC_WINDOW" env-default:"0s"`
	OwnerWindow time.Duration `env:"ANALYTICS_OWNER_WINDOW" env-default:"0s"`

	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Load reads an optional .env file, then the environment. Variables already set win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.CachePrewarm < 0 {
		errs = append(errs, errors.New("CACHE_PREWARM must not be negative"))
	}
	if c.CreateRateRPS <= 0 || c.CreateRateBurst <= 0 {
		errs = append(errs, errors.New("CREATE_RATE_RPS and CREATE_RATE_BURST must be positive"))
	}
	if c.VisitQueueSize <= 0 || c.VisitWorkers <= 0 {
		errs = append(errs, errors.New("VISIT_QUEUE_SIZE and VISIT_WORKERS must be positive"))
	}
	if c.AliasWindow < 0 || c.TopicWindow < 0 || c.OwnerWindow < 0 {
		errs = append(errs, errors.New("analytics windows must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
