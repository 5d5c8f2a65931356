package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"agri-dashboard/pkg/database"
)

// Config is the process configuration, loaded from the environment
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	Cache    CacheConfig    `koanf:"cache"`
	Auth     AuthConfig     `koanf:"auth"`
	Forecast ForecastConfig `koanf:"forecast"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"name"`
	SSLMode         string        `koanf:"sslmode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// PostgresConfig converts the section into the database package's config
func (d DatabaseConfig) PostgresConfig() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		ConnectTimeout:  d.ConnectTimeout,
	}
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

// CacheConfig configures the Redis response cache. An empty Addr disables it.
type CacheConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// Enabled reports whether a Redis address was configured
func (c CacheConfig) Enabled() bool {
	return c.Addr != ""
}

// AuthConfig holds the HMAC secret used to validate bearer tokens.
// An empty secret disables authentication.
type AuthConfig struct {
	JWTSecret string `koanf:"secret"`
}

// Enabled reports whether bearer tokens are required
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// ForecastConfig holds forecast generation settings. A nil Seed draws noise
// from the shared random source.
type ForecastConfig struct {
	Seed *uint64 `koanf:"seed"`
}

// envSections maps environment variable prefixes to config sections.
// REDIS_ADDR becomes cache.addr, DB_MAX_OPEN_CONNS becomes database.max_open_conns.
var envSections = map[string]string{
	"SERVER":   "server",
	"DB":       "database",
	"LOG":      "logging",
	"REDIS":    "cache",
	"CACHE":    "cache",
	"JWT":      "auth",
	"FORECAST": "forecast",
}

// envKey turns an environment variable into a koanf key. Unknown prefixes and
// empty values are dropped so the defaults stay in place.
func envKey(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}

	prefix, field, found := strings.Cut(key, "_")
	if !found {
		return "", nil
	}

	section, ok := envSections[prefix]
	if !ok {
		return "", nil
	}

	return section + "." + strings.ToLower(field), value
}

// Default returns the configuration used when no environment overrides are set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "agri",
			Password:        "agri_dev_password",
			Database:        "agri_dashboard",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
			ConnectTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
	}
}

// LoadConfig reads the configuration from environment variables over the defaults
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges that parsing alone cannot catch
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database port out of range: %d", c.Database.Port)
	}
	if c.Database.Host == "" {
		return errors.New("database host is required")
	}
	if c.Database.Database == "" {
		return errors.New("database name is required")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		return fmt.Errorf("max idle connections (%d) exceeds max open connections (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Cache.Enabled() && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when cache is enabled: %s", c.Cache.TTL)
	}
	return nil
}
