// Package config loads the typed server and CLI configuration.
//
// Values come from, in increasing priority: built-in defaults, a YAML file,
// and LEDGER_* environment variables (LEDGER_DATABASE_PATH overrides
// database.path, and so on).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LEDGER"

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// StaticPath is an optional directory of frontend assets.
	StaticPath string `mapstructure:"static_path"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	Secret            string        `mapstructure:"secret"`
	Issuer            string        `mapstructure:"issuer"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
}

// CacheConfig selects the result cache. Driver is "memory", "redis" or
// "none".
type CacheConfig struct {
	Driver   string        `mapstructure:"driver"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DisplayConfig controls how reports format money.
type DisplayConfig struct {
	Currency string `mapstructure:"currency"`
}

// Config is the complete configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Display  DisplayConfig  `mapstructure:"display"`
}

var defaults = map[string]any{
	"server.address":           ":8080",
	"server.static_path":       "",
	"database.path":            "./data/ledger.db",
	"auth.secret":              "",
	"auth.issuer":              "expenseledger",
	"auth.token_ttl":           "24h",
	"auth.bcrypt_cost":         10,
	"auth.min_password_length": 8,
	"cache.driver":             "memory",
	"cache.addr":               "localhost:6379",
	"cache.password":           "",
	"cache.db":                 0,
	"cache.ttl":                "10m",
	"cache.prefix":             "ledger:",
	"log.level":                "info",
	"display.currency":         "EUR",
}

// Load reads the configuration. An empty path looks for ledger.yaml in the
// working directory and falls back to defaults when there is none; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("ledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values the defaults cannot make safe.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Auth.MinPasswordLength < 1 {
		return errors.New("auth.min_password_length must be at least 1")
	}
	if len(c.Display.Currency) != 3 {
		return fmt.Errorf("display.currency %q is not an ISO 4217 code", c.Display.Currency)
	}
	return nil
}
