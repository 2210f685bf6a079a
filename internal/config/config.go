// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultCatalogCacheTTL = 5 * time.Minute
	defaultAuditInterval   = 10 * time.Minute
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	CatalogAddress string `env:"CATALOG_ADDRESS"`
	JWTSecret      string `env:"JWT_SECRET"`
	RedisURL       string `env:"REDIS_URL"`
	// CatalogCacheTTL: время жизни курса в кэше Redis.
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL"`
	// AuditInterval: период фоновой сверки журнала, 0 отключает сверку.
	AuditInterval time.Duration `env:"AUDIT_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg
	_, envCacheTTL := os.LookupEnv("CATALOG_CACHE_TTL")
	_, envAuditInterval := os.LookupEnv("AUDIT_INTERVAL")

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.CatalogAddress, "c", "", "course catalog address, local tables are used when empty")
	flag.StringVar(&cfg.JWTSecret, "s", "", "HS256 secret for access tokens")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for the catalog cache")
	flag.DurationVar(&cfg.CatalogCacheTTL, "cache-ttl", defaultCatalogCacheTTL, "catalog cache TTL")
	flag.DurationVar(&cfg.AuditInterval, "audit-interval", defaultAuditInterval, "ledger audit interval, 0 disables")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.CatalogAddress != "" {
		cfg.CatalogAddress = envCfg.CatalogAddress
	}
	if envCfg.JWTSecret != "" {
		cfg.JWTSecret = envCfg.JWTSecret
	}
	if envCfg.RedisURL != "" {
		cfg.RedisURL = envCfg.RedisURL
	}
	if envCacheTTL {
		cfg.CatalogCacheTTL = envCfg.CatalogCacheTTL
	}
	if envAuditInterval {
		cfg.AuditInterval = envCfg.AuditInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.CatalogCacheTTL <= 0 {
		cfg.CatalogCacheTTL = defaultCatalogCacheTTL
	}

	return cfg, nil
}
