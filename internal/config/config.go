// Package config loads service configuration from the environment. A .env
// file in the working directory is honored for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig controls the Postgres connection and migrations.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrateAttempts int
	MigrateInterval time.Duration
}

// DSN builds the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig controls the session store and task queue backend.
type RedisConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DB       int
	Enabled  bool
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ElasticConfig controls the search index connection.
type ElasticConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Enabled  bool
}

// URL returns the Elasticsearch endpoint.
func (c ElasticConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// S3Config controls object storage for benefit images.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
	UseSSL          bool
	PublicBaseURL   string
	Enabled         bool
}

// MailConfig controls SMTP delivery.
type MailConfig struct {
	Username string
	Password string
	From     string
	Host     string
	Port     int
	Enabled  bool
}

// AuthConfig controls sessions and password reset tokens.
type AuthConfig struct {
	SecretKey        string
	SessionExpire    time.Duration
	SessionRefresh   time.Duration
	ResetTokenExpire time.Duration
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string
	Format string
}

// HTTPConfig controls cross-cutting HTTP behavior.
type HTTPConfig struct {
	AllowOrigins []string
	RateLimit    int
	RateBurst    int
}

// Config aggregates all sections.
type Config struct {
	AppName  string
	Domain   string
	Debug    bool
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Elastic  ElasticConfig
	S3       S3Config
	Mail     MailConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
}

// Load reads configuration from the environment, falling back to defaults
// that match the development docker-compose layout.
func Load() (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is normal

	cfg := &Config{
		AppName: envString("APP_TITLE", "Benefits Cafeteria"),
		Domain:  envString("DOMAIN", "example.site"),
		Debug:   envBool("DEBUG", false),
		Server: ServerConfig{
			Host: envString("SERVER_HOST", "0.0.0.0"),
			Port: envInt("SERVER_PORT", 8000),
		},
		Database: DatabaseConfig{
			Host:            envString("POSTGRES_HOST", "db"),
			Port:            envInt("POSTGRES_PORT", 5432),
			User:            envString("POSTGRES_USER", "postgres"),
			Password:        envString("POSTGRES_PASSWORD", "postgres"),
			Name:            envString("POSTGRES_DB", "postgres"),
			SSLMode:         envString("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    envInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
			MigrateAttempts: envInt("MIGRATE_ATTEMPTS", 30),
			MigrateInterval: envDuration("MIGRATE_INTERVAL", 2*time.Second),
		},
		Redis: RedisConfig{
			Host:     envString("REDIS_HOST", "redis"),
			Port:     envInt("REDIS_PORT", 6379),
			User:     envString("REDIS_USER", ""),
			Password: envString("REDIS_USER_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
			Enabled:  envBool("REDIS_ENABLED", true),
		},
		Elastic: ElasticConfig{
			Host:     envString("ELASTIC_HOST", "elasticsearch"),
			Port:     envInt("ELASTIC_PORT", 9200),
			User:     envString("ELASTIC_USER", "elastic"),
			Password: envString("ELASTIC_PASSWORD", ""),
			Enabled:  envBool("ELASTIC_ENABLED", true),
		},
		S3: S3Config{
			AccessKeyID:     envString("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: envString("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:          envString("AWS_S3_BUCKET_NAME", ""),
			Endpoint:        envString("AWS_S3_ENDPOINT_URL", "s3.amazonaws.com"),
			UseSSL:          envBool("AWS_S3_USE_SSL", true),
			PublicBaseURL:   envString("AWS_S3_PUBLIC_BASE_URL", ""),
			Enabled:         envBool("S3_ENABLED", true),
		},
		Mail: MailConfig{
			Username: envString("MAIL_USERNAME", ""),
			Password: envString("MAIL_PASSWORD", ""),
			From:     envString("MAIL_FROM", ""),
			Host:     envString("MAIL_SERVER", ""),
			Port:     envInt("MAIL_PORT", 587),
			Enabled:  envBool("MAIL_ENABLED", true),
		},
		Auth: AuthConfig{
			SecretKey:        envString("SECRET_KEY", ""),
			SessionExpire:    envDuration("SESSION_EXPIRE_TIME", 7*24*time.Hour),
			SessionRefresh:   envDuration("SESSION_REFRESH_THRESHOLD", 24*time.Hour),
			ResetTokenExpire: envDuration("RESET_TOKEN_EXPIRE", 10*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		HTTP: HTTPConfig{
			AllowOrigins: envList("ALLOW_ORIGINS", []string{"*"}),
			RateLimit:    envInt("RATE_LIMIT", 50),
			RateBurst:    envInt("RATE_BURST", 100),
		},
	}

	if cfg.Auth.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}
	if cfg.S3.Enabled && cfg.S3.Bucket == "" {
		cfg.S3.Enabled = false
	}
	if cfg.Mail.Enabled && cfg.Mail.Host == "" {
		cfg.Mail.Enabled = false
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts either a Go duration string or a plain number of
// seconds, matching how the original deployment expressed expiry times.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
