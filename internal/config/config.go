package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/storage/local"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
)

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"4000"`
	// PublicURL prefixes links sent by email. When empty the request host is used.
	PublicURL string `env:"PUBLIC_URL"`

	// Document store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`
	Mongo       database.MongoConfig
	Postgres    database.PostgresConfig

	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis product cache
	RedisEnabled    bool `env:"REDIS_ENABLED" envDefault:"false"`
	Redis           database.RedisConfig
	ProductCacheTTL time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Sessions and credentials
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpire        time.Duration `env:"JWT_EXPIRE" envDefault:"120h"`
	CookieExpireDays int           `env:"COOKIE_EXPIRE_DAYS" envDefault:"5"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"10"`

	CatalogPageSize int `env:"CATALOG_PAGE_SIZE" envDefault:"4"`

	Mail   mail.Config
	Assets local.Config

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// HTTP edge
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
	PprofEnabled       bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedIPs    []string `env:"PPROF_ALLOWED_IPS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from the environment, after applying an optional
// .env or config.env file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithFiles(cfg, ".env", "config.env"); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{StoreMongo, StorePostgres, StoreMemory}, c.StoreDriver) {
		return fmt.Errorf("unknown STORE_DRIVER %q, want mongo, postgres or memory", c.StoreDriver)
	}
	if c.CatalogPageSize < 1 {
		return fmt.Errorf("CATALOG_PAGE_SIZE must be positive, got %d", c.CatalogPageSize)
	}
	if c.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive, got %s", c.JWTExpire)
	}
	if c.CookieExpireDays < 1 {
		return fmt.Errorf("COOKIE_EXPIRE_DAYS must be positive, got %d", c.CookieExpireDays)
	}

	// Outside development, require an explicitly set, strong JWT secret.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
		if c.StoreDriver == StoreMemory {
			return fmt.Errorf("STORE_DRIVER=memory is only allowed in development")
		}
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CookieTTL is the lifetime of the session cookie.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.CookieExpireDays) * 24 * time.Hour
}
