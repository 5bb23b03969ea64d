package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Config is the runtime configuration read from the environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Entropy
	RPCURL         string        `env:"ENTROPY_RPC_URL" envDefault:"https://rpc.sepolia.mantle.xyz"`
	EntropyTimeout time.Duration `env:"ENTROPY_TIMEOUT" envDefault:"5s"`

	// Storage
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"memory"`
	BoltPath      string `env:"BOLT_PATH" envDefault:"fairplay.db"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LoadDotEnv loads a .env file when present. A missing file is not an error.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis, BackendBolt:
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.EntropyTimeout <= 0 {
		cfg.EntropyTimeout = EntropyTimeout
	}
	return cfg, nil
}
