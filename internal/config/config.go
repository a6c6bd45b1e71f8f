package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Snapshot backends.
const (
	SnapshotNone     = "none"
	SnapshotMemory   = "memory"
	SnapshotSQLite   = "sqlite"
	SnapshotPostgres = "postgres"
	SnapshotRedis    = "redis"
)

type Config struct {
	APIBaseURL     string        `mapstructure:"API_BASE_URL"`
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	HTTPTimeout    time.Duration `mapstructure:"HTTP_TIMEOUT"`
	UserAgent      string        `mapstructure:"USER_AGENT"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	AuthToken      string        `mapstructure:"AUTH_TOKEN"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthSubject    string        `mapstructure:"AUTH_SUBJECT"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	ConsoleKey     string        `mapstructure:"CONSOLE_SIGNING_KEY"`
	Snapshot       string        `mapstructure:"SNAPSHOT_BACKEND"`
	SQLitePath     string        `mapstructure:"SQLITE_PATH"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	StaleGuard     bool          `mapstructure:"STALE_GUARD"`
	OTLPEndpoint   string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsEnabled bool          `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"API_BASE_URL", "ENV", "PORT", "LOG_LEVEL", "HTTP_TIMEOUT", "USER_AGENT",
	"CORS_ORIGINS", "AUTH_TOKEN", "AUTH_SIGNING_KEY", "AUTH_ISSUER",
	"AUTH_SUBJECT", "AUTH_AUDIENCE", "CONSOLE_SIGNING_KEY", "SNAPSHOT_BACKEND",
	"SQLITE_PATH", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"STALE_GUARD", "OTEL_EXPORTER_OTLP_ENDPOINT", "METRICS_ENABLED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8100")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_TIMEOUT", "0s")
	v.SetDefault("USER_AGENT", "hms-console")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_SUBJECT", "hms-console")
	v.SetDefault("SNAPSHOT_BACKEND", SnapshotNone)
	v.SetDefault("SQLITE_PATH", "hms-snapshot.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("STALE_GUARD", false)
	v.SetDefault("METRICS_ENABLED", true)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.Snapshot = strings.ToLower(cfg.Snapshot)

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is coherent before anything is
// started. In production the state API must be protected by a signing key.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT must not be negative, got %s", c.HTTPTimeout)
	}
	if c.AuthToken != "" && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_TOKEN and AUTH_SIGNING_KEY are mutually exclusive")
	}
	if c.IsProduction() && c.ConsoleKey == "" {
		return fmt.Errorf("CONSOLE_SIGNING_KEY is required in production")
	}

	switch c.Snapshot {
	case SnapshotNone, SnapshotMemory:
	case SnapshotSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when SNAPSHOT_BACKEND is %q", c.Snapshot)
		}
	case SnapshotPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SNAPSHOT_BACKEND is %q", c.Snapshot)
		}
	case SnapshotRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SNAPSHOT_BACKEND is %q", c.Snapshot)
		}
	default:
		return fmt.Errorf("SNAPSHOT_BACKEND must be one of none, memory, sqlite, postgres, redis; got %q", c.Snapshot)
	}
	return nil
}
