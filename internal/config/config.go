package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the service.
type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	DatabaseURL   string `env:"DATABASE_URL" env-default:"glucodiary.db"`
	HTTPAddr      string `env:"HTTP_ADDR" env-default:":8080"`
	WebAppURL     string `env:"WEBAPP_URL"`
	AMQPURL       string `env:"AMQP_URL"`
	Timezone      string `env:"TIMEZONE" env-default:"Europe/Moscow"`

	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL" env-default:"30s"`
	JobTimeout       time.Duration `env:"JOB_TIMEOUT" env-default:"25s"`
	InitDataMaxAge   time.Duration `env:"INIT_DATA_MAX_AGE" env-default:"24h"`
	AuthCacheSize    int           `env:"AUTH_CACHE_SIZE" env-default:"1024"`
}

// Load reads configuration from the environment, after loading .env when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("read .env: %v", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}

	if cfg.DispatchInterval <= 0 {
		return cfg, fmt.Errorf("DISPATCH_INTERVAL must be positive")
	}
	if cfg.InitDataMaxAge <= 0 {
		return cfg, fmt.Errorf("INIT_DATA_MAX_AGE must be positive")
	}

	return cfg, nil
}

// Location is the default zone for users who have not set their own.
// Load has already checked that Timezone resolves.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ClientConfig is what glucoctl needs to talk to the API as a Mini-App user.
type ClientConfig struct {
	APIBaseURL     string        `env:"API_BASE_URL" env-default:"http://localhost:8080"`
	InitData       string        `env:"TG_INIT_DATA"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisKey       string        `env:"REDIS_INIT_DATA_KEY" env-default:"glucoctl:init_data"`
	InitDataMaxAge time.Duration `env:"INIT_DATA_MAX_AGE" env-default:"24h"`
}

// LoadClient reads ClientConfig from the environment, after loading .env when present.
func LoadClient() (ClientConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("read .env: %v", err)
	}

	var cfg ClientConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	cfg.InitData = strings.TrimSpace(cfg.InitData)
	if cfg.InitDataMaxAge <= 0 {
		return cfg, fmt.Errorf("INIT_DATA_MAX_AGE must be positive")
	}
	return cfg, nil
}
