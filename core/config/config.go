// Package config provides environment-based configuration for Kayan Link.
//
// Configuration is loaded from environment variables using Viper, with
// sensible defaults for development. This package handles database connection
// settings, logging levels, server ports, default feature flags, and the
// optional Redis feature-flag cache.
//
// # Environment Variables
//
//   - DB_TYPE: Database type (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: kayanlink.db
//   - SKIP_AUTO_MIGRATE: Skip automatic database migrations. Default: false
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - PORT: HTTP server port. Default: 8080
//   - ACCOUNT_LINKING_ENABLED: Default for the account_linking feature gate
//     when an application has no stored override. Default: true
//   - REDIS_ADDR: Redis address for the feature-gate cache. Empty disables
//     the cache.
//   - FEATURE_CACHE_TTL: Lifetime of cached feature-gate decisions.
//     Default: 30s
//   - OTLP_ENDPOINT: OTLP gRPC endpoint for trace export. Empty disables
//     tracing.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBType          string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"DSN"`
	SkipAutoMigrate bool   `mapstructure:"SKIP_AUTO_MIGRATE"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	Port            int    `mapstructure:"PORT"`

	AccountLinkingEnabled bool          `mapstructure:"ACCOUNT_LINKING_ENABLED"`
	RedisAddr             string        `mapstructure:"REDIS_ADDR"`
	FeatureCacheTTL       time.Duration `mapstructure:"FEATURE_CACHE_TTL"`

	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "kayanlink.db")
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)
	viper.SetDefault("ACCOUNT_LINKING_ENABLED", true)
	viper.SetDefault("FEATURE_CACHE_TTL", "30s")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
