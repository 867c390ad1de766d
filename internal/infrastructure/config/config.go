package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWTSecret string        `env:"JWT_SECRET, required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,  default=1h"`

	// AuthRateLimit is requests per second per client IP on /register and /login.
	AuthRateLimit float64 `env:"AUTH_RATE_LIMIT, default=5"`
	UpsertWorkers int     `env:"UPSERT_WORKERS,  default=8"`

	StoreDriver string `env:"STORE_DRIVER, default=mongo"`

	Model ModelConfig
	Mongo MongoConfig
	Redis RedisConfig
	S3    S3Config
}

type ModelConfig struct {
	URL     string        `env:"MODEL_URL, required"`
	Timeout time.Duration `env:"MODEL_TIMEOUT, default=10s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=kakitori"`
}

// RedisConfig configures the progress cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,           default=0"`
	TTL      time.Duration `env:"PROGRESS_CACHE_TTL, default=5m"`
}

// S3Config configures the image archive. An empty Bucket disables it.
type S3Config struct {
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION, default=us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
}

// Production reports whether the service runs with production settings.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.StoreDriver != StoreMongo && cfg.StoreDriver != StoreMemory {
		return nil, fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, cfg.StoreDriver)
	}
	if cfg.AuthRateLimit <= 0 {
		return nil, fmt.Errorf("config: AUTH_RATE_LIMIT must be positive")
	}
	return &cfg, nil
}
