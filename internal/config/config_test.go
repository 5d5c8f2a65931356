package config

import (
	"testing"
	"time"
)

var configKeys = []string{
	"SERVER_HOST", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME", "DB_CONNECT_TIMEOUT",
	"LOG_LEVEL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL", "JWT_SECRET", "FORECAST_SEED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %s, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Database.ConnectTimeout != 30*time.Second {
		t.Errorf("Database.ConnectTimeout = %s, want 30s", cfg.Database.ConnectTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Cache.Enabled() {
		t.Error("cache should be disabled without REDIS_ADDR")
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should be disabled without JWT_SECRET")
	}
	if cfg.Forecast.Seed != nil {
		t.Errorf("Forecast.Seed = %d, want nil", *cfg.Forecast.Seed)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestLoadConfigCustom(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("DB_HOST", "db.prod")
	t.Setenv("DB_CONN_MAX_LIFETIME", "10m")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("FORECAST_SEED", "42")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.prod" {
		t.Errorf("Database.Host = %q, want db.prod", cfg.Database.Host)
	}
	if cfg.Database.ConnMaxLifetime != 10*time.Minute {
		t.Errorf("Database.ConnMaxLifetime = %s, want 10m", cfg.Database.ConnMaxLifetime)
	}
	if !cfg.Cache.Enabled() || cfg.Cache.DB != 2 {
		t.Errorf("Cache = %+v, want enabled on db 2", cfg.Cache)
	}
	if !cfg.Auth.Enabled() {
		t.Error("auth should be enabled with JWT_SECRET")
	}
	if cfg.Forecast.Seed == nil || *cfg.Forecast.Seed != 42 {
		t.Errorf("Forecast.Seed = %v, want 42", cfg.Forecast.Seed)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_PORT":         "invalid",
		"SERVER_READ_TIMEOUT": "soon",
		"REDIS_DB":            "one",
		"FORECAST_SEED":       "-1",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"server port", func(c *Config) { c.Server.Port = 70000 }},
		{"database port", func(c *Config) { c.Database.Port = 0 }},
		{"database host", func(c *Config) { c.Database.Host = "" }},
		{"idle exceeds open", func(c *Config) { c.Database.MaxIdleConns = c.Database.MaxOpenConns + 1 }},
		{"cache ttl", func(c *Config) { c.Cache.Addr = "redis:6379"; c.Cache.TTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestPostgresConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_NAME", "agri_test")
	t.Setenv("DB_CONNECT_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	pg := cfg.Database.PostgresConfig()
	if pg.Database != "agri_test" {
		t.Errorf("Database = %q, want agri_test", pg.Database)
	}
	if pg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %s, want 5s", pg.ConnectTimeout)
	}
	if pg.MaxOpenConns != cfg.Database.MaxOpenConns {
		t.Errorf("MaxOpenConns = %d, want %d", pg.MaxOpenConns, cfg.Database.MaxOpenConns)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env   string
		value string
		want  string
	}{
		{"SERVER_READ_TIMEOUT", "5s", "server.read_timeout"},
		{"DB_MAX_OPEN_CONNS", "10", "database.max_open_conns"},
		{"DB_NAME", "agri", "database.name"},
		{"LOG_LEVEL", "debug", "logging.level"},
		{"REDIS_ADDR", "redis:6379", "cache.addr"},
		{"CACHE_TTL", "1m", "cache.ttl"},
		{"JWT_SECRET", "s3cret", "auth.secret"},
		{"FORECAST_SEED", "7", "forecast.seed"},
		{"HOME", "/root", ""},
		{"GOPATH_EXTRA", "x", ""},
		{"DB_HOST", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			got, _ := envKey(tt.env, tt.value)
			if got != tt.want {
				t.Errorf("envKey(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadConfigIgnoresUnrelatedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_SOFTWARE", "nginx")
	t.Setenv("LOGNAME", "agri")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	want := Default()
	if cfg.Server != want.Server {
		t.Errorf("Server = %+v, want %+v", cfg.Server, want.Server)
	}
	if cfg.Logging != want.Logging {
		t.Errorf("Logging = %+v, want %+v", cfg.Logging, want.Logging)
	}
}
